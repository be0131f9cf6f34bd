package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrAgentName       = "agent.name"
	AttrAgentLLM        = "agent.llm"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"
	AttrEventID         = "omnicore.event_id"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size_bytes"

	SpanAgentCall     = "agent.call"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanMemoryLookup  = "agent.memory_lookup"
	SpanHTTPRequest   = "http.request"

	// Span names DebugExporter filters for, together with SpanToolExecution.
	// SpanAgentRun is started by pkg/ooda's Executor.Run and
	// Tracer.StartAgentRun; SpanLLMCall and SpanMemorySearch by
	// Tracer.StartLLMCall and Tracer.StartMemorySearch.
	SpanAgentRun     = "ooda.run"
	SpanLLMCall      = "router.llm_call"
	SpanMemorySearch = "router.route"

	// Span names for the Hybrid Router, OODA Runner, and Graph executor,
	// added alongside pkg/router, pkg/runner and pkg/graph tracing.
	SpanRouterRoute = "router.route_query"
	SpanRunnerRun   = "ooda.runner_run"
	SpanGraphNode   = "graph.node_execution"

	DefaultServiceName  = "omnicore"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
