package agent

// State is a step of the retrieval coordinator. Every Result carries the
// states it passed through, in order.
type State string

const (
	StateReceived        State = "RECEIVED"
	StateShortCircuit    State = "SHORT_CIRCUIT"
	StateTheory          State = "THEORY"
	StateClarified       State = "CLARIFIED"
	StateRouteStructured State = "ROUTE_STRUCTURED"
	StateRouteBoth       State = "ROUTE_BOTH"
	StateFiltered        State = "FILTERED"
	StateCandidatesReady State = "CANDIDATES_READY"
	StateCandidatesEmpty State = "CANDIDATES_EMPTY"
	StateQueryReady      State = "QUERY_READY"
	StateGenFailed       State = "GEN_FAILED"
	StateDataReady       State = "DATA_READY"
	StateDataEmpty       State = "DATA_EMPTY"
	StateExecFailed      State = "EXEC_FAILED"
	StateDone            State = "DONE"
	StateUnavailable     State = "UNAVAILABLE"
	StateFailed          State = "FAILED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateShortCircuit, StateTheory, StateGenFailed, StateExecFailed,
		StateDone, StateUnavailable, StateFailed:
		return true
	}
	return false
}

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeAnswered           Outcome = "answered"
	OutcomeNoData             Outcome = "no_data"
	OutcomeShortCircuit       Outcome = "short_circuit"
	OutcomeTheory             Outcome = "theory"
	OutcomeGenerationFailed   Outcome = "generation_failed"
	OutcomeExecutionFailed    Outcome = "execution_failed"
	OutcomeServiceUnavailable Outcome = "service_unavailable"
	OutcomeInternalError      Outcome = "internal_error"
)

// HasData reports whether the outcome produced a dataset worth packaging.
func (o Outcome) HasData() bool {
	return o == OutcomeAnswered
}

// Fixed user-facing messages.
const (
	CannotAnswerMessage       = "I cannot answer your query with the knowledge I have right now."
	ServiceUnavailableMessage = "External service temporarily unavailable. Please try again later."
	GenerationFailedMessage   = "I could not turn your question into a data query. Please try rephrasing it."
	ExecutionFailedMessage    = "The data query for your question could not be run. Please try rephrasing it."
	InternalErrorMessage      = "Something went wrong while answering your question. Please try again."
	RewriteApologyMessage     = "Sorry, I could not understand your question. Could you rephrase it?"
	OffDomainMessage          = "I can only answer queries related to ARGO float data, its parameters (temperature, salinity, pressure, BGC), and their visualizations."
	GreetingMessage           = "Hello, I am float chat, here to assist you with oceanographic data. Ask me about ARGO floats, their profiles and measurements."
)
