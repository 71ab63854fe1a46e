package chain

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Sentinel errors forming the taxonomy every worker's steady-state loop
// checks with errors.Is before deciding whether to log-and-continue.
var (
	ErrTransport     = errors.New("chain: transport error")
	ErrDecoding      = errors.New("chain: decoding error")
	ErrOraclesSkipped = errors.New("chain: program reported noop oracle cache")
	ErrOverExposure  = errors.New("chain: liquidator over-exposed for requested size")
	ErrUnrecoverable = errors.New("chain: target not (or no longer) actionable")
)

// ErrConfirmationTimeout means a transaction was submitted but never
// observed finalizing within the bounded confirmation poll.
type ErrConfirmationTimeout struct {
	Signature solana.Signature
}

func (e *ErrConfirmationTimeout) Error() string {
	return fmt.Sprintf("chain: confirmation timeout for %s", e.Signature)
}

// CustomProgramError classifies a preflight/execution custom error code
// surfaced by the exchange program, per the retry-send table in §4.1.
type CustomProgramError struct {
	Code uint32
}

func (e *CustomProgramError) Error() string {
	return fmt.Sprintf("chain: custom program error %d", e.Code)
}

// overExposureCodes and unrecoverableCodes are the program's documented
// custom error codes that the retry-send loop special-cases.
var (
	overExposureCodes  = map[uint32]bool{6006: true, 6016: true, 6046: true}
	unrecoverableCodes = map[uint32]bool{6007: true, 6011: true, 6012: true, 6017: true, 6052: true}
)

// ClassifyCustomError maps a custom program error code onto the retry
// decision the caller should take.
func ClassifyCustomError(code uint32) error {
	switch {
	case overExposureCodes[code]:
		return fmt.Errorf("%w: code %d", ErrOverExposure, code)
	case unrecoverableCodes[code]:
		return fmt.Errorf("%w: code %d", ErrUnrecoverable, code)
	default:
		return &CustomProgramError{Code: code}
	}
}
