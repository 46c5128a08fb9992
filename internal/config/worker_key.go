package config

type WorkerKeyStruct struct {
	ResultStatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ResultStatsQueue: "result_stats_queue",
}
