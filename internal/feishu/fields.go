package feishu

import (
	"time"

	"go.uber.org/zap"

	"github.com/vgh186/feishu/internal/record"
)

// FieldNames maps record fields to bitable column names.
type FieldNames struct {
	Title    string `yaml:"title"`
	Summary  string `yaml:"summary"`
	Created  string `yaml:"created"`
	Deadline string `yaml:"deadline"`
}

// DefaultFieldNames are the column names of the notification table.
var DefaultFieldNames = FieldNames{
	Title:    "院校通知",
	Summary:  "院校通知详情 AI",
	Created:  "创建时间",
	Deadline: "截止日期",
}

// withDefaults fills empty column names from DefaultFieldNames.
func (f FieldNames) withDefaults() FieldNames {
	if f.Title == "" {
		f.Title = DefaultFieldNames.Title
	}
	if f.Summary == "" {
		f.Summary = DefaultFieldNames.Summary
	}
	if f.Created == "" {
		f.Created = DefaultFieldNames.Created
	}
	if f.Deadline == "" {
		f.Deadline = DefaultFieldNames.Deadline
	}
	return f
}

// DateMillis converts an ISO date to milliseconds since the epoch at
// midnight in loc, the representation bitable date columns accept.
func DateMillis(date string, loc *time.Location) (int64, error) {
	t, err := time.ParseInLocation(record.DateLayout, date, loc)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// Fields builds the bitable field map for rec. Date values that do not parse
// and a nil deadline are left out.
func Fields(rec *record.Record, names FieldNames, loc *time.Location, log *zap.Logger) map[string]any {
	if log == nil {
		log = zap.NewNop()
	}
	names = names.withDefaults()
	fields := make(map[string]any, 4)

	if rec.Title != "" {
		fields[names.Title] = rec.Title
	}
	if rec.SummaryDetail != "" {
		fields[names.Summary] = rec.SummaryDetail
	}

	addDate := func(column, value string) {
		if value == "" {
			return
		}
		ms, err := DateMillis(value, loc)
		if err != nil {
			log.Warn("skipping date field that cannot be converted to a timestamp",
				zap.String("field", column), zap.String("value", value))
			return
		}
		fields[column] = ms
	}
	addDate(names.Created, rec.CreatedDate)
	if rec.Deadline == nil {
		log.Debug("no deadline extracted; field not sent", zap.String("field", names.Deadline))
	} else {
		addDate(names.Deadline, *rec.Deadline)
	}

	return fields
}
