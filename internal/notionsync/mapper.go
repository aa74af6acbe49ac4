package notionsync

import (
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the trend database.
const (
	PropKey      = "Key"
	PropCategory = "Category"
	PropAmount   = "Amount"
	PropDate     = "Date"
)

// TrendKey identifies a trend row across runs: the label and its latest
// booking date.
func TrendKey(row domain.TrendRow) string {
	return row.Label + " @ " + row.DateTime
}

// TrendToNotionProperties converts a trend row to Notion properties.
func TrendToNotionProperties(row domain.TrendRow) notionapi.Properties {
	amount, _ := row.Amount.Float64()

	props := notionapi.Properties{
		PropKey: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: TrendKey(row),
					},
				},
			},
		},
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Label,
			},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
	}

	if t, err := time.Parse(time.DateOnly, row.DateTime); err == nil {
		d := notionapi.Date(t)
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	return props
}

// extractTrendKey returns the Key title of a page, or "" when absent.
func extractTrendKey(page notionapi.Page) string {
	if prop, ok := page.Properties[PropKey]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
