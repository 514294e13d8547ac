package matching

import (
	"fmt"
	"math"
	"strings"
)

// Factor caps. Contributions are independent and each factor is bounded, so
// no single signal can dominate the total.
const (
	maxCategoryPoints   = 30
	maxPayPoints        = 20
	maxDurationPoints   = 15
	maxProximityPoints  = 15
	maxSkillPoints      = 10
	maxUrgencyPoints    = 5
	maxRatingPoints     = 5
	maxReputationPoints = 15
)

const earthRadiusKm = 6371.0

// Score computes a reputation-weighted match score in [0,100] for one
// user/task pair. Deterministic and side-effect free; safe to recompute on
// every request.
func Score(user UserSnapshot, task TaskListing) MatchResult {
	result := MatchResult{TaskID: task.ID}
	total := 0

	add := func(points int, reason string) {
		if points <= 0 {
			return
		}
		total += points
		result.Reasons = append(result.Reasons, reason)
	}

	add(categoryPoints(user, task))
	add(payPoints(user, task))
	add(durationPoints(user, task))
	add(proximityPoints(user, task))
	add(skillPoints(user, task))

	if task.Urgent {
		add(maxUrgencyPoints, "task is marked urgent")
	}
	add(posterRatingPoints(task))
	add(reputationPoints(user))

	if total > 100 {
		total = 100
	}
	result.Score = total
	return result
}

func categoryPoints(user UserSnapshot, task TaskListing) (int, string) {
	for i, cat := range user.TopCategories {
		if !strings.EqualFold(cat, task.Category) {
			continue
		}
		if i == 0 {
			return maxCategoryPoints, fmt.Sprintf("matches your top category %q", task.Category)
		}
		return 15, fmt.Sprintf("matches a category you have worked in (%q)", task.Category)
	}
	return 0, ""
}

func payPoints(user UserSnapshot, task TaskListing) (int, string) {
	if user.TypicalPay <= 0 || task.PayAmount <= 0 {
		return 0, ""
	}
	ratio := task.PayAmount / user.TypicalPay
	switch {
	case ratio >= 1.2:
		return maxPayPoints, "pays well above your typical rate"
	case ratio >= 0.9:
		return 12, "pay is in line with your typical rate"
	case ratio >= 0.7:
		return 6, "pay is slightly below your typical rate"
	default:
		return 0, ""
	}
}

func durationPoints(user UserSnapshot, task TaskListing) (int, string) {
	if user.TypicalDurationMinutes <= 0 || task.DurationMinutes <= 0 {
		return 0, ""
	}
	diff := math.Abs(float64(task.DurationMinutes-user.TypicalDurationMinutes)) / float64(user.TypicalDurationMinutes)
	switch {
	case diff <= 0.25:
		return maxDurationPoints, "duration fits the jobs you usually take"
	case diff <= 0.5:
		return 8, "duration is close to the jobs you usually take"
	default:
		return 0, ""
	}
}

func proximityPoints(user UserSnapshot, task TaskListing) (int, string) {
	d := distanceKm(user.Lat, user.Lng, task.Lat, task.Lng)
	switch {
	case d <= 5:
		return maxProximityPoints, fmt.Sprintf("very close to you (%.1f km)", d)
	case d <= 15:
		return 10, fmt.Sprintf("nearby (%.1f km)", d)
	case d <= 40:
		return 5, fmt.Sprintf("within travel range (%.1f km)", d)
	default:
		// Includes the +Inf missing-coordinates case: no points, no reason.
		return 0, ""
	}
}

// skillPoints does substring matching against the concatenated title and
// description. Short skill tokens can false-positive ("art" in "cart"); the
// coarse behavior is kept deliberately.
func skillPoints(user UserSnapshot, task TaskListing) (int, string) {
	haystack := strings.ToLower(task.Title + " " + task.Description)
	points := 0
	var matched []string
	for _, skill := range user.Skills {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s == "" || !strings.Contains(haystack, s) {
			continue
		}
		points += 5
		matched = append(matched, skill)
		if points >= maxSkillPoints {
			points = maxSkillPoints
			break
		}
	}
	if points == 0 {
		return 0, ""
	}
	return points, fmt.Sprintf("mentions your skills: %s", strings.Join(matched, ", "))
}

func posterRatingPoints(task TaskListing) (int, string) {
	if task.PosterRating == nil {
		return 0, ""
	}
	switch {
	case *task.PosterRating >= 4.5:
		return maxRatingPoints, "highly rated poster"
	case *task.PosterRating >= 4.0:
		return 3, "well rated poster"
	default:
		return 0, ""
	}
}

func reputationPoints(user UserSnapshot) (int, string) {
	switch {
	case user.ReputationScore >= 80:
		return maxReputationPoints, "top-tier reputation bonus"
	case user.ReputationScore >= 60:
		return 10, "strong reputation bonus"
	case user.TrustScore >= 70 || user.BadgeCount >= 3:
		return 5, "trusted member bonus"
	default:
		return 0, ""
	}
}

// distanceKm is the great-circle (haversine) distance. Either pair of
// coordinates missing yields +Inf, which every caller treats as "no points",
// never as an error.
func distanceKm(lat1, lng1, lat2, lng2 *float64) float64 {
	if lat1 == nil || lng1 == nil || lat2 == nil || lng2 == nil {
		return math.Inf(1)
	}

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(*lat2 - *lat1)
	dLng := rad(*lng2 - *lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(*lat1))*math.Cos(rad(*lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
