package stategraph

import (
	"github.com/wandermind/stategraph/internal/adapters/llm"
	"github.com/wandermind/stategraph/internal/adapters/lookup"
	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/internal/app/services"
	"github.com/wandermind/stategraph/internal/app/usecases"
	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/internal/core/state"
	"github.com/wandermind/stategraph/internal/core/trace"
)

// END is the pseudo-node that terminates a run
const END = graph.END

// State types
type (
	State   = state.State
	Schema  = state.Schema
	Field   = state.Field
	Kind    = state.Kind
	Message = state.Message
	Role    = state.Role
)

// Field kinds
const (
	KindString   = state.KindString
	KindStrings  = state.KindStrings
	KindInt      = state.KindInt
	KindFloat    = state.KindFloat
	KindBool     = state.KindBool
	KindMap      = state.KindMap
	KindAny      = state.KindAny
	KindMessages = state.KindMessages
)

// Graph types
type (
	Graph      = graph.Graph
	Compiled   = graph.Compiled
	NodeFunc   = graph.NodeFunc
	RouterFunc = graph.RouterFunc
	Topology   = graph.Topology
	Overlay    = graph.Overlay
)

// Run types
type (
	Result    = usecases.Result
	RunConfig = dto.RunConfig
	Trace     = trace.Trace
	Record    = trace.Record
	Hook      = usecases.Hook
	HookFunc  = usecases.HookFunc
	Event     = usecases.Event
	ActiveRun = services.ActiveRun
)

// History types
type (
	RunRecord = history.Run
	RunFilter = history.Filter
	RunStatus = history.Status
	Saver     = history.Saver
)

// Collaborators used by nodes
type (
	TextGenerator = llm.TextGenerator
	Embedder      = llm.Embedder
	LookupStore   = lookup.Store
)

// Error types
type (
	ValidationError        = graph.ValidationError
	Violation              = graph.Violation
	RunError               = usecases.RunError
	NodeExecutionError     = usecases.NodeExecutionError
	RoutingError           = usecases.RoutingError
	StepLimitExceededError = usecases.StepLimitExceededError
	CancelledError         = usecases.CancelledError
	PanicError             = usecases.PanicError
)

var (
	ErrNodeExecution     = usecases.ErrNodeExecution
	ErrRouting           = usecases.ErrRouting
	ErrStepLimitExceeded = usecases.ErrStepLimitExceeded
	ErrCancelled         = usecases.ErrCancelled
	ErrUndeclaredTarget  = usecases.ErrUndeclaredTarget
	ErrGraphNotFound     = usecases.ErrGraphNotFound
	ErrGraphExists       = usecases.ErrGraphExists
	ErrRunNotFound       = history.ErrRunNotFound
	ErrUnknownField      = state.ErrUnknownField
	ErrKindMismatch      = state.ErrKindMismatch
	ErrAppendOnly        = state.ErrAppendOnly
)

// Constructors
var (
	NewGraph        = graph.New
	NewSchema       = state.NewSchema
	MustSchema      = state.MustSchema
	StringField     = state.StringField
	StringsField    = state.StringsField
	IntField        = state.IntField
	FloatField      = state.FloatField
	BoolField       = state.BoolField
	MapField        = state.MapField
	AnyField        = state.AnyField
	MessagesField   = state.MessagesField
	HumanMessage    = state.HumanMessage
	AIMessage       = state.AIMessage
	SystemMessage   = state.SystemMessage
	WithDescription = graph.WithDescription
)

// Run error helpers
var (
	ErrorKind    = usecases.ErrorKind
	TraceOf      = usecases.TraceOf
	LastStateOf  = usecases.LastStateOf
	FailedNodeOf = usecases.FailedNodeOf
)

// Run metadata available to nodes through their context
var (
	RunIDFrom     = usecases.RunIDFrom
	GraphNameFrom = usecases.GraphNameFrom
	NodeIDFrom    = usecases.NodeIDFrom
	StepFrom      = usecases.StepFrom
)
