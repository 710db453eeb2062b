package search

import (
	"fmt"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	// NoInformationAnswer is returned without calling the model when nothing
	// was retrieved.
	NoInformationAnswer = "Xin lỗi, tôi không tìm thấy thông tin liên quan đến câu hỏi của bạn trong cơ sở dữ liệu."

	// GenerationFailedAnswer replaces the model output when generation fails.
	GenerationFailedAnswer = "Xin lỗi, có lỗi xảy ra khi tạo câu trả lời. Vui lòng thử lại."

	systemPrompt = "Bạn là một trợ lý pháp lý chuyên nghiệp, chuyên trả lời các câu hỏi về pháp luật Việt Nam.\n\n" +
		"Dựa trên các văn bản pháp luật được cung cấp dưới đây, hãy trả lời câu hỏi một cách chính xác và chi tiết.\n\n" +
		"Nếu câu trả lời không có trong các văn bản được cung cấp, hãy nói rõ rằng bạn không có thông tin để trả lời câu hỏi này."

	userPromptTemplate = "Các văn bản pháp luật:\n%s\n\n" +
		"Câu hỏi: %s\n\n" +
		"Hãy trả lời câu hỏi dựa trên các văn bản pháp luật được cung cấp. Nếu có thể, hãy trích dẫn điều, khoản cụ thể.\n" +
		"Trả lời:"
)

// BuildPrompt returns the grounded system and user messages for a question.
func BuildPrompt(contextBlock, question string) []types.ChatMessage {
	return []types.ChatMessage{
		{Role: types.RoleSystem, Content: systemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf(userPromptTemplate, contextBlock, question)},
	}
}
