package enum

type BatchState string

const (
	BatchConnecting         BatchState = "connecting"
	BatchFetching           BatchState = "fetching"
	BatchProcessingMessages BatchState = "processing_messages"
	BatchSummarizing        BatchState = "summarizing"
	BatchDone               BatchState = "done"
	BatchAborted            BatchState = "aborted"
)

func (s BatchState) String() string {
	return string(s)
}

func (s BatchState) IsTerminal() bool {
	return s == BatchDone || s == BatchAborted
}

type BatchTrigger string

const (
	BatchTriggerAPI   BatchTrigger = "api"
	BatchTriggerCron  BatchTrigger = "cron"
	BatchTriggerEvent BatchTrigger = "event"
	BatchTriggerCLI   BatchTrigger = "cli"
)

func (t BatchTrigger) String() string {
	return string(t)
}
