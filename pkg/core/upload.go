package core

// UploadMetadata describes an exported dataset to the collector it is uploaded to.
type UploadMetadata struct {
	SessionID    string
	PlayerID     string
	Environment  string
	DurationS    float64
	FinalScore   int
	VictimsSaved int
	VictimsTotal int
	Tag          string
}
