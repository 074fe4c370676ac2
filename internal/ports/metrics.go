package ports

type Metrics interface {
	ObserveAllocation(outcome string)
	ObserveHold(accepted bool)
	ObserveSettlement(final bool)
	ObserveBatchClosed(payoutRecords int)
	ObserveBatchSettled()
	SetOpenBatches(n int)
	SetOpenStores(n int)
}

type NoopMetrics struct{}

func (NoopMetrics) ObserveAllocation(string) {}
func (NoopMetrics) ObserveHold(bool)         {}
func (NoopMetrics) ObserveSettlement(bool)   {}
func (NoopMetrics) ObserveBatchClosed(int)   {}
func (NoopMetrics) ObserveBatchSettled()     {}
func (NoopMetrics) SetOpenBatches(int)       {}
func (NoopMetrics) SetOpenStores(int)        {}
