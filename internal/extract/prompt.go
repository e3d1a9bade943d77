package extract

import (
	"fmt"
	"time"
)

const promptTemplate = `请从以下通知文本中提取三个关键信息：通知标题、通知详情摘要和最晚截止日期。请严格按照以下JSON格式返回结果，确保所有字符串值都用双引号括起来。

今天的日期是 %[1]s。

关于"deadline"字段：
- 请识别文本中所有与截止相关的日期和时间表述。
- 如果有多个截止日期，请选择最晚的那一个。
- 如果截止日期只提到月份（例如"8月截止"），请将其转换为当年该月的最后一天（例如，当前是%[2]d年，8月截止应为%[2]d-08-31）。
- 如果截止日期是日期范围（例如"6月10日至6月20日"），请选择范围中的结束日期。
- 请将最终确定的最晚截止日期格式化为 YYYY-MM-DD。
- 如果文本中没有明确的截止日期，或无法按上述规则解析出有效截止日期，请将"deadline"字段的值设为 null。

关于"summary"字段：
- 请生成一个精简的通知详情摘要，确保不丢失原文的主要信息。
- **重要：摘要内容不应重复或包含已提取的"通知标题"中的文字。**

输出JSON格式：
{
  "title": "提取的通知标题",
  "summary": "生成的通知详情摘要",
  "deadline": "YYYY-MM-DD格式的最晚截止日期或null"
}

通知文本如下：
---开始---
%[3]s
---结束---

请严格按照上述JSON格式输出提取结果：`

// BuildPrompt renders the extraction prompt for one notification. now fixes
// the year used to resolve month-only deadlines.
func BuildPrompt(span string, now time.Time) string {
	return fmt.Sprintf(promptTemplate, now.Format("2006-01-02"), now.Year(), span)
}
