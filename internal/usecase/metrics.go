package usecase

import domrepo "RegimeLab/internal/domain/repository"

type nopMetrics struct{}

func (nopMetrics) RecordBacktestPath(string)     {}
func (nopMetrics) RecordBasketDay(string)        {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

var _ domrepo.Metrics = nopMetrics{}
