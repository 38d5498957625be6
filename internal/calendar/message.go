package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/farm-calendar/internal/model"
)

// DisplayLayout renders due dates in outbound messages.
const DisplayLayout = "Mon 2 Jan 2006"

// ComposeMessage renders the reminder text for one event. The message always names
// the crop; when the event is not yet past it carries the day count and due date.
func ComposeMessage(kind model.EventKind, sub *model.Subscription, crop model.CropProfile, due, now time.Time) string {
	cropName := strings.TrimSpace(crop.Name)
	if cropName == "" {
		cropName = "crop"
	}

	greeting := "Hello!"
	where := ""
	if sub != nil {
		if name := strings.TrimSpace(sub.Farmer.Name); name != "" {
			greeting = fmt.Sprintf("Hello %s!", name)
		}
		if loc := strings.TrimSpace(sub.Location); loc != "" {
			where = " in " + loc
		}
	}

	days := DaysUntil(due, now)
	date := Day(due).Format(DisplayLayout)

	if days < 0 {
		return fmt.Sprintf("%s Reminder: %s for your %s%s was due on %s. Check your farming calendar for the next steps.",
			greeting, label(kind), cropName, where, date)
	}

	when := fmt.Sprintf("%s (%s)", dayPhrase(days), date)

	switch kind {
	case model.KindPlanting:
		return fmt.Sprintf("%s Planting time for your %s%s is %s. Prepare the seedbed and make sure seed is ready.",
			greeting, cropName, where, when)
	case model.KindFirstFertilizing:
		return fmt.Sprintf("%s Apply the first round of fertilizer to your %s%s %s. A nitrogen-rich fertilizer works best at this stage.",
			greeting, cropName, where, when)
	case model.KindSecondFertilizing:
		return fmt.Sprintf("%s The second fertilizer application for your %s%s is due %s.",
			greeting, cropName, where, when)
	case model.KindWatering:
		return fmt.Sprintf("%s Water your %s%s %s. Keep the soil moist during this growth stage.",
			greeting, cropName, where, when)
	case model.KindPestControl:
		return fmt.Sprintf("%s Inspect your %s%s for pests %s and apply control measures if needed.",
			greeting, cropName, where, when)
	case model.KindHarvest:
		return fmt.Sprintf("%s Your %s%s should be ready for harvest %s. Check the crop for signs of maturity.",
			greeting, cropName, where, when)
	default:
		return fmt.Sprintf("%s Upcoming activity for your %s%s %s. Check your farming calendar.",
			greeting, cropName, where, when)
	}
}

func dayPhrase(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

func label(kind model.EventKind) string {
	switch kind {
	case model.KindPlanting:
		return "planting"
	case model.KindFirstFertilizing:
		return "first fertilizing"
	case model.KindSecondFertilizing:
		return "second fertilizing"
	case model.KindWatering:
		return "watering"
	case model.KindPestControl:
		return "pest control"
	case model.KindHarvest:
		return "harvest"
	default:
		return "a farming activity"
	}
}
