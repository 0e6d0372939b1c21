package session

import "fmt"

// Direction is the data direction of a service pipe as seen from the host
type Direction uint8

const (
	DirectionTx Direction = iota + 1 // host -> peer (SendData)
	DirectionRx                      // peer -> host (RequestData, acks)
)

func (d Direction) String() string {
	switch d {
	case DirectionTx:
		return "tx"
	case DirectionRx:
		return "rx"
	}
	return "unset"
}

// ParseDirection accepts "tx" or "rx"
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "tx", "TX":
		return DirectionTx, nil
	case "rx", "RX":
		return DirectionRx, nil
	}
	return 0, fmt.Errorf("unknown pipe direction %q", s)
}

// PipeConfig declares a pipe the generated setup defines
type PipeConfig struct {
	Number    uint8
	Direction Direction
}

// PipeState is a snapshot of one pipe
type PipeState struct {
	Number     uint8
	Direction  Direction
	Configured bool
	Open       bool
	Credit     int
}
