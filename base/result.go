package base

import (
	"fmt"
	"time"
)

// ResultStatus is the outcome of one rule-check slot
type ResultStatus uint8

const (
	// ResultStatusPass the call may proceed
	ResultStatusPass ResultStatus = iota
	// ResultStatusBlocked the call is rejected with a BlockError
	ResultStatusBlocked
	// ResultStatusShouldWait the call may proceed after waiting for its slot time
	ResultStatusShouldWait
)

func (s ResultStatus) String() string {
	switch s {
	case ResultStatusPass:
		return "Pass"
	case ResultStatusBlocked:
		return "Blocked"
	case ResultStatusShouldWait:
		return "ShouldWait"
	default:
		return fmt.Sprintf("ResultStatus(%d)", uint8(s))
	}
}

// TokenResult is the decision produced by one rule checker. Checkers reuse
// the instance held by the context and mutate it with the Reset methods.
type TokenResult struct {
	status      ResultStatus
	blockErr    *BlockError
	nanosToWait time.Duration
}

// NewTokenResultPass creates a pass decision
func NewTokenResultPass() *TokenResult {
	return &TokenResult{status: ResultStatusPass}
}

// NewTokenResultBlocked creates a blocked decision of the given kind
func NewTokenResultBlocked(blockType BlockType) *TokenResult {
	return &TokenResult{status: ResultStatusBlocked, blockErr: NewBlockError(blockType)}
}

// NewTokenResultBlockedWithMessage creates a blocked decision with a cause message
func NewTokenResultBlockedWithMessage(blockType BlockType, msg string) *TokenResult {
	return &TokenResult{status: ResultStatusBlocked, blockErr: NewBlockErrorWithMessage(blockType, msg)}
}

// NewTokenResultBlockedWithCause creates a blocked decision carrying the rule and snapshot
func NewTokenResultBlockedWithCause(blockType BlockType, msg string, rule Rule, snapshot interface{}) *TokenResult {
	return &TokenResult{status: ResultStatusBlocked, blockErr: NewBlockErrorWithCause(blockType, msg, rule, snapshot)}
}

// NewTokenResultShouldWait creates a queueing decision with the computed wait
func NewTokenResultShouldWait(wait time.Duration) *TokenResult {
	return &TokenResult{status: ResultStatusShouldWait, nanosToWait: wait}
}

// ResetToPass reverts the result to pass, clearing any block cause
func (r *TokenResult) ResetToPass() {
	r.status = ResultStatusPass
	r.blockErr = nil
	r.nanosToWait = 0
}

// ResetToBlocked overwrites the result with a rejection of the given kind
func (r *TokenResult) ResetToBlocked(blockType BlockType) {
	r.status = ResultStatusBlocked
	r.blockErr = NewBlockError(blockType)
	r.nanosToWait = 0
}

// ResetToBlockedFrom overwrites the result with the rejection carried by other
func (r *TokenResult) ResetToBlockedFrom(other *TokenResult) {
	r.status = ResultStatusBlocked
	r.blockErr = other.blockErr
	r.nanosToWait = 0
}

// IsPass reports whether the call may proceed
func (r *TokenResult) IsPass() bool {
	return r.status == ResultStatusPass
}

// IsBlocked reports whether the call was rejected
func (r *TokenResult) IsBlocked() bool {
	return r.status == ResultStatusBlocked
}

// Status returns the decision status
func (r *TokenResult) Status() ResultStatus {
	return r.status
}

// BlockError returns the rejection cause, nil when not blocked
func (r *TokenResult) BlockError() *BlockError {
	return r.blockErr
}

// NanosToWait returns the wait assigned by a queueing strategy
func (r *TokenResult) NanosToWait() time.Duration {
	return r.nanosToWait
}

func (r *TokenResult) String() string {
	var blockMsg string
	if r.blockErr != nil {
		blockMsg = r.blockErr.Error()
	}
	return fmt.Sprintf("TokenResult{status=%s, blockErr=%s, nanosToWait=%v}", r.status, blockMsg, r.nanosToWait)
}
