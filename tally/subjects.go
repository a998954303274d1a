package tally

const (
	DefaultCastSubject   = "vote.save"
	DefaultTallySubject  = "vote.get"
	DefaultConsumerGroup = "group1"

	// InstanceHeader identifica qual agregador respondeu.
	InstanceHeader = "Tally-Instance"
)

const logModule = "tally"

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
