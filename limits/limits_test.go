package limits

import (
	"errors"
	"testing"
	"time"
)

func TestValidateWatermarks(t *testing.T) {
	tests := []struct {
		name      string
		low, high uint32
		wantErr   error
	}{
		{"defaults", DefaultLowBar, DefaultHighBar, nil},
		{"equal bars", 4, 4, nil},
		{"zero bars", 0, 0, nil},
		{"inverted", 5, 4, ErrWatermarkOrder},
		{"too deep", 1, MaxWatermark + 1, ErrOutOfRange},
		{"at cap", MaxWatermark, MaxWatermark, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWatermarks(tt.low, tt.high)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateWatermarks(%d, %d) = %v, want nil", tt.low, tt.high, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateWatermarks(%d, %d) = %v, want %v", tt.low, tt.high, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWindowSize(t *testing.T) {
	if err := ValidateWindowSize(DefaultWindowSize); err != nil {
		t.Errorf("default window rejected: %v", err)
	}
	if err := ValidateWindowSize(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("zero window: got %v, want ErrOutOfRange", err)
	}
	if err := ValidateWindowSize(MaxWindowSize + 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("oversized window: got %v, want ErrOutOfRange", err)
	}
}

func TestValidateTimeout(t *testing.T) {
	if err := ValidateTimeout("reset", DefaultResetTimeout); err != nil {
		t.Errorf("default reset timeout rejected: %v", err)
	}
	if err := ValidateTimeout("preview", time.Millisecond); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("1ms timeout: got %v, want ErrOutOfRange", err)
	}
	if err := ValidateTimeout("preview", time.Hour); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("1h timeout: got %v, want ErrOutOfRange", err)
	}
}
