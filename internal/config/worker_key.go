package config

type WorkerKeyStruct struct {
	PersistAnswersQueue   string
	FinalizeSessionsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:   "persist_answers_queue",
	FinalizeSessionsQueue: "finalize_sessions_queue",
}
