package notify

import (
	"encoding/json"
	"fmt"

	lsp "github.com/sourcegraph/go-lsp"
)

// Channel identifies a named message channel.
type Channel string

// All channels understood by either side of the connection.
const (
	EvalRequestChan         Channel = "eval-request"
	EvalResponseChan        Channel = "eval-response"
	FevalRequestChan        Channel = "feval-request"
	FevalResponseChan       Channel = "feval-response"
	InterruptRequestChan    Channel = "interrupt-request"
	UnpauseRequestChan      Channel = "unpause-request"
	SetBreakpointReqChan    Channel = "set-breakpoint-request"
	SetBreakpointRespChan   Channel = "set-breakpoint-response"
	ClearBreakpointReqChan  Channel = "clear-breakpoint-request"
	ClearBreakpointRespChan Channel = "clear-breakpoint-response"
	TextChan                Channel = "text"
	ClearChan               Channel = "clc"
	PromptChangeChan        Channel = "prompt-change"
	StateChangeChan         Channel = "state-change"
	DebugStateChangeChan    Channel = "debugging-state-change"
	CompletionRequestChan   Channel = "completion-request"
	CompletionResponseChan  Channel = "completion-response"
	DebugAdaptorReqChan     Channel = "debug-adaptor-request"
	DebugAdaptorRespChan    Channel = "debug-adaptor-response"
	DebugAdaptorEventChan   Channel = "debug-adaptor-event"
	DimensionsChan          Channel = "terminal-dimensions"
)

// Message is implemented by every member of the closed message union.
type Message interface {
	Channel() Channel
}

// Stream distinguishes runtime output destinations.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// PromptState is the runtime's readiness/mode as communicated to the UI.
type PromptState string

const (
	PromptInitializing    PromptState = "INITIALIZING"
	PromptReady           PromptState = "READY"
	PromptBusy            PromptState = "BUSY"
	PromptDebug           PromptState = "DEBUG"
	PromptInput           PromptState = "INPUT"
	PromptPause           PromptState = "PAUSE"
	PromptMore            PromptState = "MORE"
	PromptCompletingBlock PromptState = "COMPLETING_BLOCK"
)

// EvalRequest submits code for evaluation.
type EvalRequest struct {
	RequestID            string   `json:"requestId"`
	Command              string   `json:"command"`
	IsUserEval           bool     `json:"isUserEval"`
	CapabilitiesToRemove []string `json:"capabilitiesToRemove,omitempty"`
}

// EvalResponse acknowledges completion of an eval request.
type EvalResponse struct {
	RequestID string `json:"requestId"`
}

// FevalRequest calls a named function in the runtime.
type FevalRequest struct {
	RequestID            string   `json:"requestId"`
	FunctionName         string   `json:"functionName"`
	Nargout              int      `json:"nargout"`
	Args                 []any    `json:"args"`
	CapabilitiesToRemove []string `json:"capabilitiesToRemove,omitempty"`
}

// FevalResponse carries the result of a feval call; the result may be
// error-shaped instead of a value.
type FevalResponse struct {
	RequestID string      `json:"requestId"`
	Result    FevalResult `json:"result"`
}

// FevalResult is either a list of return values or an error shape. Callers
// branch on Error being non-nil; an error result is returned, not thrown.
type FevalResult struct {
	Values []json.RawMessage `json:"values,omitempty"`
	Error  *EvalError        `json:"error,omitempty"`
}

// IsError reports whether the result is error-shaped.
func (r FevalResult) IsError() bool { return r.Error != nil }

// EvalError is the error shape a feval response may carry.
type EvalError struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

func (e *EvalError) Error() string { return e.Message }

// InterruptRequest cooperatively interrupts a running evaluation. It is
// fire-and-forget; no response exists.
type InterruptRequest struct{}

// UnpauseRequest resumes the runtime from a paused state.
type UnpauseRequest struct{}

// SetBreakpointRequest installs a breakpoint.
type SetBreakpointRequest struct {
	RequestID      string `json:"requestId"`
	FileName       string `json:"fileName"`
	LineNumber     int    `json:"lineNumber"`
	Condition      string `json:"condition,omitempty"`
	AnonymousIndex int    `json:"anonymousIndex,omitempty"`
}

// SetBreakpointResponse acknowledges a set-breakpoint request.
type SetBreakpointResponse struct {
	RequestID string `json:"requestId"`
}

// ClearBreakpointRequest removes a breakpoint.
type ClearBreakpointRequest struct {
	RequestID      string `json:"requestId"`
	FileName       string `json:"fileName"`
	LineNumber     int    `json:"lineNumber"`
	AnonymousIndex int    `json:"anonymousIndex,omitempty"`
}

// ClearBreakpointResponse acknowledges a clear-breakpoint request.
type ClearBreakpointResponse struct {
	RequestID string `json:"requestId"`
}

// Text is a fragment of process output.
type Text struct {
	Text   string `json:"text"`
	Stream Stream `json:"stream"`
}

// Clear instructs the UI to clear the screen.
type Clear struct{}

// PromptChange reports a prompt-state transition.
type PromptChange struct {
	State  PromptState `json:"state"`
	IsIdle bool        `json:"isIdle"`
}

// StateChange reports a connection state transition.
type StateChange struct {
	State   string `json:"state"`
	Release string `json:"release"`
}

// Connection states carried by StateChange.
const (
	StateDisconnected = "disconnected"
	StateConnected    = "connected"
)

// DebugStateChange reports entering or leaving a debug-stopped state.
type DebugStateChange struct {
	Debugging bool `json:"debugging"`
}

// CompletionRequest asks for completions of the code up to offset.
type CompletionRequest struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Offset    int    `json:"offset"`
}

// CompletionResponse carries the completion list for a request.
type CompletionResponse struct {
	RequestID string               `json:"requestId"`
	Items     []lsp.CompletionItem `json:"items"`
}

// DebugAdaptorRequest is a proxied debug-protocol request tagged with the
// numeric identity of the originating adapter.
type DebugAdaptorRequest struct {
	Tag     int             `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// DebugAdaptorResponse is a proxied debug-protocol response; Tag identifies
// the adapter it belongs to.
type DebugAdaptorResponse struct {
	Tag     int             `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// DebugAdaptorEvent is a proxied debug-protocol event.
type DebugAdaptorEvent struct {
	Payload json.RawMessage `json:"payload"`
}

// Dimensions pushes the terminal size to the runtime so that its output
// wrapping matches the UI.
type Dimensions struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

func (EvalRequest) Channel() Channel             { return EvalRequestChan }
func (EvalResponse) Channel() Channel            { return EvalResponseChan }
func (FevalRequest) Channel() Channel            { return FevalRequestChan }
func (FevalResponse) Channel() Channel           { return FevalResponseChan }
func (InterruptRequest) Channel() Channel        { return InterruptRequestChan }
func (UnpauseRequest) Channel() Channel          { return UnpauseRequestChan }
func (SetBreakpointRequest) Channel() Channel    { return SetBreakpointReqChan }
func (SetBreakpointResponse) Channel() Channel   { return SetBreakpointRespChan }
func (ClearBreakpointRequest) Channel() Channel  { return ClearBreakpointReqChan }
func (ClearBreakpointResponse) Channel() Channel { return ClearBreakpointRespChan }
func (Text) Channel() Channel                    { return TextChan }
func (Clear) Channel() Channel                   { return ClearChan }
func (PromptChange) Channel() Channel            { return PromptChangeChan }
func (StateChange) Channel() Channel             { return StateChangeChan }
func (DebugStateChange) Channel() Channel        { return DebugStateChangeChan }
func (CompletionRequest) Channel() Channel       { return CompletionRequestChan }
func (CompletionResponse) Channel() Channel      { return CompletionResponseChan }
func (DebugAdaptorRequest) Channel() Channel     { return DebugAdaptorReqChan }
func (DebugAdaptorResponse) Channel() Channel    { return DebugAdaptorRespChan }
func (DebugAdaptorEvent) Channel() Channel       { return DebugAdaptorEventChan }
func (Dimensions) Channel() Channel              { return DimensionsChan }

// decoders maps each channel to a function decoding its JSON payload into
// the concrete message type. Unknown channels are rejected at the boundary.
var decoders = map[Channel]func(json.RawMessage) (Message, error){
	EvalRequestChan:         decodeInto[EvalRequest],
	EvalResponseChan:        decodeInto[EvalResponse],
	FevalRequestChan:        decodeInto[FevalRequest],
	FevalResponseChan:       decodeInto[FevalResponse],
	InterruptRequestChan:    decodeInto[InterruptRequest],
	UnpauseRequestChan:      decodeInto[UnpauseRequest],
	SetBreakpointReqChan:    decodeInto[SetBreakpointRequest],
	SetBreakpointRespChan:   decodeInto[SetBreakpointResponse],
	ClearBreakpointReqChan:  decodeInto[ClearBreakpointRequest],
	ClearBreakpointRespChan: decodeInto[ClearBreakpointResponse],
	TextChan:                decodeInto[Text],
	ClearChan:               decodeInto[Clear],
	PromptChangeChan:        decodeInto[PromptChange],
	StateChangeChan:         decodeInto[StateChange],
	DebugStateChangeChan:    decodeInto[DebugStateChange],
	CompletionRequestChan:   decodeInto[CompletionRequest],
	CompletionResponseChan:  decodeInto[CompletionResponse],
	DebugAdaptorReqChan:     decodeInto[DebugAdaptorRequest],
	DebugAdaptorRespChan:    decodeInto[DebugAdaptorResponse],
	DebugAdaptorEventChan:   decodeInto[DebugAdaptorEvent],
	DimensionsChan:          decodeInto[Dimensions],
}

func decodeInto[M Message](raw json.RawMessage) (Message, error) {
	var m M
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Decode validates and decodes an incoming payload for channel c.
func Decode(c Channel, raw json.RawMessage) (Message, error) {
	dec, ok := decoders[c]
	if !ok {
		return nil, fmt.Errorf("notify: unknown channel %q", c)
	}
	return dec(raw)
}
