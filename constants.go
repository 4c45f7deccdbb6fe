package dfilter

const (
	// packetBuffer depth of the channel Scan delivers packets on
	packetBuffer = 50
	// defaultWorkers goroutines applying the filter when WithWorkers is not given
	defaultWorkers = 1
)
