package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/services"
)

const dateLayout = "2006-01-02"

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got: %s", name, arg)
	}
	return id, nil
}

func parseDate(arg string) (time.Time, error) {
	t, err := time.Parse(dateLayout, arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must look like %s, got: %s", dateLayout, arg)
	}
	return t, nil
}

// parseQuota reads "<class id>:<max>"
func parseQuota(arg string) (services.QuotaRequest, error) {
	classPart, maxPart, ok := strings.Cut(arg, ":")
	if !ok {
		return services.QuotaRequest{}, fmt.Errorf("quota must look like <class id>:<max>, got: %s", arg)
	}
	classID, err := parseID(classPart, "class id")
	if err != nil {
		return services.QuotaRequest{}, err
	}
	max, err := strconv.Atoi(maxPart)
	if err != nil {
		return services.QuotaRequest{}, fmt.Errorf("quota max must be a number, got: %s", maxPart)
	}
	return services.QuotaRequest{ClassID: classID, Max: max}, nil
}

// parseGrant reads "<user>:<minutes>"; the user part may itself contain colons
func parseGrant(arg string) (services.SpecialGrant, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 {
		return services.SpecialGrant{}, fmt.Errorf("grant must look like <user>:<minutes>, got: %s", arg)
	}
	reward, err := strconv.Atoi(arg[i+1:])
	if err != nil {
		return services.SpecialGrant{}, fmt.Errorf("grant minutes must be a number, got: %s", arg[i+1:])
	}
	return services.SpecialGrant{Participant: arg[:i], Reward: reward}, nil
}

func parseVolType(arg string) (model.VolType, error) {
	switch strings.ToLower(arg) {
	case "inside":
		return model.VolTypeInside, nil
	case "outside":
		return model.VolTypeOutside, nil
	case "large":
		return model.VolTypeLarge, nil
	}
	return 0, fmt.Errorf("type must be inside, outside or large, got: %s", arg)
}

func thoughtColor(status model.ThoughtStatus) string {
	switch status {
	case model.ThoughtAccepted:
		return colorGreen
	case model.ThoughtRejected:
		return colorRed
	case model.ThoughtWaitingForFirstAudit, model.ThoughtWaitingForFinalAudit, model.ThoughtSpike:
		return colorYellow
	}
	return colorDim
}

func volunteerColor(status model.VolStatus) string {
	switch status {
	case model.VolStatusAccepted, model.VolStatusSpecial:
		return colorGreen
	case model.VolStatusRejected:
		return colorRed
	}
	return colorYellow
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// formatMinutes renders 95 as "1h35m"
func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

func pageFooter(total, page, pageSize int) string {
	if pageSize < 1 {
		return fmt.Sprintf("%d total", total)
	}
	pages := (total + pageSize - 1) / pageSize
	return fmt.Sprintf("page %d of %d, %d total", page, max(pages, 1), total)
}
