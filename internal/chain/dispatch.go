package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// confirmationPollAttempts and confirmationPollInterval implement the
// bounded "25 times at 2 s intervals" wait of §4.1.
const (
	confirmationPollAttempts = 25
	confirmationPollInterval = 2 * time.Second
)

// Dispatch fetches a recent blockhash, builds and signs a transaction with
// only the payer as signer, submits it, and polls for confirmation per
// §4.1. It returns nil on first confirmed status, a wrapped execution
// error, or *ErrConfirmationTimeout.
func Dispatch(ctx context.Context, client *rpc.Client, payer solana.PrivateKey, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := client.GetLatestBlockhash(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: get latest blockhash: %v", ErrTransport, err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if payer.PublicKey().Equals(key) {
			return &payer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: send transaction: %v", ErrTransport, err)
	}

	if err := pollConfirmation(ctx, client, sig, recent.Value.LastValidBlockHeight); err != nil {
		return sig, err
	}
	return sig, nil
}

func pollConfirmation(ctx context.Context, client *rpc.Client, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(confirmationPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < confirmationPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		statuses, err := client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			st := statuses.Value[0]
			if st.Err != nil {
				if code, ok := customErrorCode(st.Err); ok {
					return ClassifyCustomError(code)
				}
				return fmt.Errorf("transaction execution error: %v", st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		height, err := client.GetBlockHeight(ctx, rpc.CommitmentProcessed)
		if err == nil && height > lastValidBlockHeight {
			return &ErrConfirmationTimeout{Signature: sig}
		}
	}
	return &ErrConfirmationTimeout{Signature: sig}
}

// RetrySend rebuilds and resubmits a transaction up to maxAttempts times,
// per §4.1's retry-send table. build receives the number of ErrOverExposure
// rejections so far, so the caller can shrink the request after each one;
// a transient error resubmits at the same size, and ErrUnrecoverable gives
// up immediately.
func RetrySend(ctx context.Context, client *rpc.Client, payer solana.PrivateKey, build func(overExposures int) ([]solana.Instruction, error), maxAttempts int) error {
	overExposures := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		instructions, err := build(overExposures)
		if err != nil {
			return fmt.Errorf("build attempt %d: %w", attempt, err)
		}

		_, err = Dispatch(ctx, client, payer, instructions)
		if err == nil {
			return nil
		}

		switch {
		case errors.Is(err, ErrOverExposure):
			overExposures++
			continue
		case errors.Is(err, ErrUnrecoverable):
			return fmt.Errorf("%w (attempt %d)", ErrUnrecoverable, attempt)
		default:
			// transient RPC error: continue the loop.
		}
	}
	return fmt.Errorf("retry-send exhausted %d attempts", maxAttempts)
}

// customErrorCode extracts a program's custom error code from the
// {"InstructionError":[idx,{"Custom":code}]} shape the RPC returns for a
// failed transaction's status.Err.
func customErrorCode(txErr interface{}) (uint32, bool) {
	top, ok := txErr.(map[string]interface{})
	if !ok {
		return 0, false
	}
	ixErr, ok := top["InstructionError"]
	if !ok {
		return 0, false
	}
	pair, ok := ixErr.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, false
	}
	inner, ok := pair[1].(map[string]interface{})
	if !ok {
		return 0, false
	}
	custom, ok := inner["Custom"]
	if !ok {
		return 0, false
	}
	switch v := custom.(type) {
	case float64:
		return uint32(v), true
	case int:
		return uint32(v), true
	case uint32:
		return v, true
	default:
		return 0, false
	}
}
