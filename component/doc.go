// Package component defines the contract every pipeline stage implements:
// its lifecycle states, the events it reports and the Base state machine
// implementations embed.
//
// # States
//
// A component's lifecycle is a State:
//
//	Null -> Preparing -> Prepared -> Starting -> Playing
//	Playing -> Pausing -> Paused -> Starting -> Playing
//	any -> Stopping -> Stopped -> (Reset) -> Null
//
// Seek, flush and reset progress is tracked separately as a Transient so a
// flush in flight never disturbs the lifecycle state. Readiness checks use
// the predicates on State, never ordinal comparisons.
//
// # Operations
//
// Every operation returns (Mode, error):
//
//   - (Sync, nil): the transition is done and its event already fired.
//   - (Async, nil): the transition is under way; its event arrives later.
//   - (_, err): the operation was rejected and the state is unchanged.
//
// Asking for a state the component is already at or past is not an error:
// the completion event is fired again and (Sync, nil) is returned.
//
// # Events
//
// Components report completions through an EventSink. Event payloads are a
// closed set of types selected by PayloadKind, so consumers switch on Kind
// instead of probing with type assertions.
package component
