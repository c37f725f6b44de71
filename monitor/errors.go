package monitor

import "errors"

var (
	// ErrConsumeUnderflow indicates ConsumeOne without a matching ProduceOne.
	ErrConsumeUnderflow = errors.New("consume without matching produce")

	// ErrInvalidWindow indicates a statistics window outside the accepted bounds.
	ErrInvalidWindow = errors.New("invalid statistics window")
)
