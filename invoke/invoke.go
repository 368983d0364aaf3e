package invoke

import (
	"context"
	"sync"
)

// Request is one prompt for an external agent service.
type Request struct {
	// System is an optional system prompt.
	System string `json:"system,omitempty"`

	// Prompt is the user-visible instruction.
	Prompt string `json:"prompt"`

	// MaxOutputUnits caps the response size. Zero uses the adapter's
	// configured maximum.
	MaxOutputUnits int `json:"max_output_units,omitempty"`

	// EstimatedInputUnits sizes the rate-limiter reservation. Zero lets
	// the limiter admit on request count alone.
	EstimatedInputUnits int64 `json:"estimated_input_units,omitempty"`
}

// Usage is the metered consumption of one invocation.
type Usage struct {
	InputUnits  int64 `json:"input_units"`
	OutputUnits int64 `json:"output_units"`
}

// Response is the outcome of one invocation.
type Response struct {
	Output  string  `json:"output"`
	Usage   Usage   `json:"usage"`
	CostUSD float64 `json:"cost_usd"`
	Model   string  `json:"model,omitempty"`
}

// Invoker calls an external agent service.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Pricing converts usage to cost. Rates are USD per single unit.
type Pricing struct {
	InputUnitUSD  float64
	OutputUnitUSD float64
}

// Cost returns the dollar cost of u under p.
func (p Pricing) Cost(u Usage) float64 {
	return float64(u.InputUnits)*p.InputUnitUSD + float64(u.OutputUnits)*p.OutputUnitUSD
}

// Mock is a scriptable Invoker for tests.
type Mock struct {
	mu       sync.Mutex
	response *Response
	err      error
	calls    int
	last     Request

	// InvokeFunc overrides the scripted behavior when set.
	InvokeFunc func(ctx context.Context, req Request) (*Response, error)
}

// NewMock creates a mock that returns an empty successful response.
func NewMock() *Mock {
	return &Mock{response: &Response{}}
}

// SetResponse scripts the response.
func (m *Mock) SetResponse(resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
}

// SetError scripts a failure.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Invoke ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request.
func (m *Mock) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Invoke implements Invoker.
func (m *Mock) Invoke(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls++
	m.last = req
	fn := m.InvokeFunc
	resp, err := m.response, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	out := *resp
	return &out, nil
}

var _ Invoker = (*Mock)(nil)
