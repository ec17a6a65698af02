package provider

const (
	unknownEmotion = "Unknown"
	unknownEmoji   = "❓"
)

type band struct {
	low, high int // [low, high)
	emotion   string
	emoji     string
}

// bands partition [0, 100) in ascending order.
var bands = []band{
	{0, 25, "Extreme Fear", "😱"},
	{25, 45, "Fear", "😨"},
	{45, 55, "Neutral", "😐"},
	{55, 75, "Greed", "😊"},
	{75, 100, "Extreme Greed", "🤑"},
}

// Classify maps an index value to its emotion label and emoji.
// Values outside [0, 100) are Unknown.
func Classify(index int) (emotion, emoji string) {
	for _, b := range bands {
		if index >= b.low && index < b.high {
			return b.emotion, b.emoji
		}
	}
	return unknownEmotion, unknownEmoji
}
