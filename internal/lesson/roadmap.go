package lesson

// Topic is one entry of the vocabulary roadmap.
type Topic struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Vietnamese string `json:"vietnamese"`
	Month      int    `json:"month"`
	Grade      string `json:"grade"`
}

// Roadmap is the default three-month topic sequence.
var Roadmap = []Topic{
	{"family", "Family", "Gia đình", 1, "2-5"},
	{"school", "School", "Trường học", 1, "2-5"},
	{"body", "Body", "Cơ thể", 1, "2-5"},
	{"colors", "Colors", "Màu sắc", 1, "2-5"},
	{"numbers", "Numbers", "Số đếm", 1, "2-5"},
	{"animals-basic", "Animals (Basic)", "Động vật (Cơ bản)", 1, "2-5"},

	{"food", "Food", "Thức ăn", 2, "2-5"},
	{"clothes", "Clothes", "Quần áo", 2, "2-5"},
	{"house", "House", "Ngôi nhà", 2, "2-5"},
	{"nature", "Nature", "Thiên nhiên", 2, "2-5"},
	{"feelings", "Feelings", "Cảm xúc", 2, "2-5"},
	{"action-verbs", "Action Verbs", "Động từ hành động", 2, "2-5"},

	{"transportation", "Transportation", "Giao thông", 3, "2-5"},
	{"jobs", "Jobs", "Nghề nghiệp", 3, "2-5"},
	{"weather", "Weather", "Thời tiết", 3, "2-5"},
	{"daily-routine", "Daily Routine", "Hàng ngày", 3, "2-5"},
	{"adjectives-basic", "Adjectives (Basic)", "Tính từ (Cơ bản)", 3, "2-5"},
}

// Progress is what the learner has covered of one topic.
type Progress struct {
	Topic        string `json:"topic"`
	WordsLearned int    `json:"words_learned"`
}

// Upcoming returns up to n roadmap topics that have no progress entry yet,
// in roadmap order.
func Upcoming(roadmap []Topic, progress []Progress, n int) []Topic {
	done := make(map[string]bool, len(progress))
	for _, p := range progress {
		done[p.Topic] = true
	}
	var out []Topic
	for _, t := range roadmap {
		if len(out) == n {
			break
		}
		if !done[t.Name] {
			out = append(out, t)
		}
	}
	return out
}
