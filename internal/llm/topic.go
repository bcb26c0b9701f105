package llm

import "strings"

// topicRule 话题检测规则
type topicRule struct {
	keywords    []string
	topic       string
	contentType string
}

// 按优先级排列的话题规则表
var topicRules = []topicRule{
	{
		keywords:    []string{"computer science", "cs degree", "programming", "coding", "software"},
		topic:       "BS Computer Science Degree Plan",
		contentType: "academic_program",
	},
	{
		keywords:    []string{"scholarship", "financial aid", "grant", "loan", "tuition", "funding"},
		topic:       "Scholarships and Financial Aid",
		contentType: "financial_aid",
	},
	{
		keywords:    []string{"admission", "apply", "application", "requirements", "gpa"},
		topic:       "Admissions",
		contentType: "admissions",
	},
	{
		keywords:    []string{"housing", "dorm", "residence", "room"},
		topic:       "Housing and Residence Life",
		contentType: "housing",
	},
}

// DetectTopic 基于关键词的简单话题检测
// 返回话题名和内容分类，作为提示词的话题提示传给模型
func DetectTopic(question string) (topic string, contentType string) {
	lower := strings.ToLower(question)

	for _, rule := range topicRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.topic, rule.contentType
			}
		}
	}

	return "Missouri State University", "general_info"
}
