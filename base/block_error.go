package base

import "fmt"

// BlockType names the rule kind that rejected a call
type BlockType uint8

const (
	// BlockTypeUnknown unclassified rejection
	BlockTypeUnknown BlockType = iota
	// BlockTypeFlow rejected by a flow control rule
	BlockTypeFlow
	// BlockTypeIsolation rejected by a concurrency isolation rule
	BlockTypeIsolation
	// BlockTypeCircuitBreaking rejected by an open circuit breaker
	BlockTypeCircuitBreaking
	// BlockTypeSystemFlow rejected by system adaptive protection
	BlockTypeSystemFlow
	// BlockTypeHotSpotParamFlow rejected by hotspot parameter flow control
	BlockTypeHotSpotParamFlow
)

var blockTypeNames = map[BlockType]string{
	BlockTypeUnknown:          "Unknown",
	BlockTypeFlow:             "FlowControl",
	BlockTypeIsolation:        "Isolation",
	BlockTypeCircuitBreaking:  "CircuitBreaking",
	BlockTypeSystemFlow:       "SystemOverload",
	BlockTypeHotSpotParamFlow: "HotSpotParamFlow",
}

func (t BlockType) String() string {
	if name, ok := blockTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("BlockType(%d)", uint8(t))
}

// Rule is the minimal contract every governance rule satisfies
type Rule interface {
	// ResourceName returns the resource the rule targets
	ResourceName() string

	fmt.Stringer
}

// BlockError is the expected, frequent outcome of a rejected admission.
// It implements error so it can flow through ordinary error paths, but it
// represents governance, not a fault.
type BlockError struct {
	blockType     BlockType
	blockMsg      string
	rule          Rule
	snapshotValue interface{}
}

// NewBlockError creates a block error carrying only the kind
func NewBlockError(blockType BlockType) *BlockError {
	return &BlockError{blockType: blockType}
}

// NewBlockErrorWithMessage creates a block error with a cause message
func NewBlockErrorWithMessage(blockType BlockType, msg string) *BlockError {
	return &BlockError{blockType: blockType, blockMsg: msg}
}

// NewBlockErrorWithCause creates a block error carrying the triggered rule
// and the snapshot value observed at rejection time.
func NewBlockErrorWithCause(blockType BlockType, msg string, rule Rule, snapshot interface{}) *BlockError {
	return &BlockError{blockType: blockType, blockMsg: msg, rule: rule, snapshotValue: snapshot}
}

// BlockType returns the rule kind that produced the rejection
func (e *BlockError) BlockType() BlockType {
	return e.blockType
}

// BlockMsg returns the human-readable cause
func (e *BlockError) BlockMsg() string {
	return e.blockMsg
}

// TriggeredRule returns the rule that produced the rejection, may be nil
func (e *BlockError) TriggeredRule() Rule {
	return e.rule
}

// TriggeredValue returns the statistic snapshot observed at rejection time
func (e *BlockError) TriggeredValue() interface{} {
	return e.snapshotValue
}

func (e *BlockError) Error() string {
	if e == nil {
		return "nil *BlockError"
	}
	if e.blockMsg == "" {
		return fmt.Sprintf("aegis: %s blocked", e.blockType)
	}
	return fmt.Sprintf("aegis: %s blocked: %s", e.blockType, e.blockMsg)
}
