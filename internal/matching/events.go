package matching

import "encoding/json"

type EventType string

const (
	EventStatus         EventType = "status"
	EventSearchComplete EventType = "search_complete"
	EventQuickResult    EventType = "quick_result"
	EventLLMChunk       EventType = "llm_chunk"
	EventFinalResult    EventType = "final_result"
	EventError          EventType = "error"
)

// Event is one step of a streamed match. The concrete types are Status,
// SearchComplete, QuickResult, LLMChunk, FinalResult and Failure. Every
// event marshals to a JSON object carrying its "type".
type Event interface {
	Type() EventType
	event()
}

// Terminal reports whether ev ends a stream.
func Terminal(ev Event) bool {
	t := ev.Type()
	return t == EventFinalResult || t == EventError
}

type Status struct {
	Message string `json:"message"`
}

type SearchComplete struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

type QuickResult struct {
	Index int `json:"index"`
	Hit   Hit `json:"hit"`
}

type LLMChunk struct {
	Chunk       string `json:"chunk"`
	Accumulated string `json:"accumulated"`
}

// FinalResult carries the ranked result, or the raw hits in quick mode.
type FinalResult struct {
	Result       *Result
	QuickResults []Hit
	Quick        bool
}

// Failure ends a stream. Raw holds the model text received so far.
type Failure struct {
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
}

func (Status) Type() EventType         { return EventStatus }
func (SearchComplete) Type() EventType { return EventSearchComplete }
func (QuickResult) Type() EventType    { return EventQuickResult }
func (LLMChunk) Type() EventType       { return EventLLMChunk }
func (FinalResult) Type() EventType    { return EventFinalResult }
func (Failure) Type() EventType        { return EventError }

func (Status) event()         {}
func (SearchComplete) event() {}
func (QuickResult) event()    {}
func (LLMChunk) event()       {}
func (FinalResult) event()    {}
func (Failure) event()        {}

func (e Status) MarshalJSON() ([]byte, error) {
	type payload Status
	return json.Marshal(struct {
		Type EventType `json:"type"`
		payload
	}{e.Type(), payload(e)})
}

func (e SearchComplete) MarshalJSON() ([]byte, error) {
	type payload SearchComplete
	if e.IDs == nil {
		e.IDs = []string{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		payload
	}{e.Type(), payload(e)})
}

func (e QuickResult) MarshalJSON() ([]byte, error) {
	type payload QuickResult
	return json.Marshal(struct {
		Type EventType `json:"type"`
		payload
	}{e.Type(), payload(e)})
}

func (e LLMChunk) MarshalJSON() ([]byte, error) {
	type payload LLMChunk
	return json.Marshal(struct {
		Type EventType `json:"type"`
		payload
	}{e.Type(), payload(e)})
}

func (e FinalResult) MarshalJSON() ([]byte, error) {
	var results any = e.Result
	if e.Quick {
		hits := e.QuickResults
		if hits == nil {
			hits = []Hit{}
		}
		results = map[string][]Hit{"quick_results": hits}
	}
	return json.Marshal(struct {
		Type    EventType `json:"type"`
		Results any       `json:"results"`
	}{e.Type(), results})
}

func (e Failure) MarshalJSON() ([]byte, error) {
	type payload Failure
	return json.Marshal(struct {
		Type EventType `json:"type"`
		payload
	}{e.Type(), payload(e)})
}
