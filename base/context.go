package base

// EntryInput carries the caller-provided parameters of one admission attempt
type EntryInput struct {
	// BatchCount cost units consumed by the call, default 1
	BatchCount uint32

	// Flag reserved control bits forwarded to checkers
	Flag int32

	// Args call arguments, consulted by hotspot parameter rules
	Args []interface{}

	// Attachments request-scoped metadata for custom slots
	Attachments map[interface{}]interface{}
}

// NewEmptyEntryInput creates an input with the default batch count
func NewEmptyEntryInput() *EntryInput {
	return &EntryInput{
		BatchCount: 1,
	}
}

// EntryContext is the per-call state threaded through the slot chain.
// It is exclusively owned by one call between creation and completion.
type EntryContext struct {
	entry *Entry

	resource *ResourceWrapper
	statNode StatNode

	input *EntryInput

	// ruleCheckResult reused across the rule-check slots of this call
	ruleCheckResult *TokenResult

	// startTime when the entry was created, Unix milliseconds
	startTime uint64
	// rt assigned on completion
	rt uint64

	// err business error reported by the caller on exit
	err error
}

// NewEmptyEntryContext creates a context with a fresh pass result
func NewEmptyEntryContext() *EntryContext {
	return &EntryContext{
		input:           NewEmptyEntryInput(),
		ruleCheckResult: NewTokenResultPass(),
		startTime:       CurrentTimeMillis(),
	}
}

// StartTime returns the creation timestamp in Unix milliseconds
func (ctx *EntryContext) StartTime() uint64 {
	return ctx.startTime
}

// Resource returns the resource under admission
func (ctx *EntryContext) Resource() *ResourceWrapper {
	return ctx.resource
}

// SetResource binds the resource under admission
func (ctx *EntryContext) SetResource(r *ResourceWrapper) {
	ctx.resource = r
}

// StatNode returns the per-resource statistic node, nil before prepare ran
func (ctx *EntryContext) StatNode() StatNode {
	return ctx.statNode
}

// SetStatNode binds the statistic node, done by the prepare slot
func (ctx *EntryContext) SetStatNode(node StatNode) {
	ctx.statNode = node
}

// Input returns the caller-provided parameters
func (ctx *EntryContext) Input() *EntryInput {
	return ctx.input
}

// SetInput replaces the caller-provided parameters
func (ctx *EntryContext) SetInput(input *EntryInput) {
	ctx.input = input
}

// Result returns the accumulated rule-check decision
func (ctx *EntryContext) Result() *TokenResult {
	return ctx.ruleCheckResult
}

// SetResult overwrites the accumulated decision
func (ctx *EntryContext) SetResult(r *TokenResult) {
	ctx.ruleCheckResult = r
}

// IsBlocked reports whether any checker rejected the call
func (ctx *EntryContext) IsBlocked() bool {
	if ctx.ruleCheckResult == nil {
		return false
	}
	return ctx.ruleCheckResult.IsBlocked()
}

// BlockError returns the rejection cause, nil when admitted
func (ctx *EntryContext) BlockError() *BlockError {
	if ctx.ruleCheckResult == nil {
		return nil
	}
	return ctx.ruleCheckResult.BlockError()
}

// Entry returns the entry owning this context
func (ctx *EntryContext) Entry() *Entry {
	return ctx.entry
}

// SetEntry binds the owning entry
func (ctx *EntryContext) SetEntry(e *Entry) {
	ctx.entry = e
}

// Rt returns the recorded round trip, valid after completion
func (ctx *EntryContext) Rt() uint64 {
	return ctx.rt
}

// SetRt records the round trip on completion
func (ctx *EntryContext) SetRt(rt uint64) {
	ctx.rt = rt
}

// Err returns the business error reported on exit, nil on success
func (ctx *EntryContext) Err() error {
	return ctx.err
}

// SetErr records the business error reported on exit
func (ctx *EntryContext) SetErr(err error) {
	ctx.err = err
}
