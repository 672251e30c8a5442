package evaluator

import (
	"fmt"
	"strings"
)

// Prompt builds the grading instruction sent alongside the audio. The tone
// targets primary-school learners and the answer is requested as JSON.
func Prompt(req Request) string {
	kind := "từ"
	if req.Mode == "sentence" {
		kind = "câu"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Đây là âm thanh học sinh lớp 2-5 đọc %s: %q.\n", kind, req.ExpectedText)
	b.WriteString("Hãy đánh giá độ chính xác của phát âm này thật nhanh và ngắn gọn.\n")
	b.WriteString("Trả lời bằng tiếng Việt, cực kỳ vui vẻ và khích lệ.\n")
	b.WriteString(`Phần "feedback" bắt đầu bằng "Tuyệt vời!" hoặc "Chính xác!" nếu đúng, hoặc "Gần đúng rồi!" nếu cần sửa.` + "\n")
	b.WriteString("Chỉ ra 1 lỗi quan trọng nhất nếu có.\n")
	b.WriteString(`Trả về đúng một đối tượng JSON: {"accuracy": số nguyên 0-100, "feedback": "...", "fluency": "...", "suggestion": "...", "isCorrect": true hoặc false}`)
	return b.String()
}
