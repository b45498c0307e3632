package stage

// Stage names used in logs, context, and error messages.
const (
	Ingest    = "ingest"
	Aggregate = "aggregate"
	Analyze   = "analyze"
	Summarize = "summarize"
	Notify    = "notify"
	Finalize  = "finalize"
	Run       = "run"
	Sweep     = "sweep"
)
