package graph

import (
	"math"
	"strconv"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// CourseStats aggregates content totals for a course tree.
type CourseStats struct {
	LectureCount int
	TotalSeconds float64
}

// StatsOf walks every section item, counting lecture items and summing
// resolved video runtimes. Missing videos or lengths contribute zero; a
// course with no sections yields zero stats.
func StatsOf(g *CourseGraph) CourseStats {
	var stats CourseStats
	if g == nil {
		return stats
	}
	for _, section := range g.Sections {
		for _, item := range section.Items {
			if item.Item.Kind != models.ItemKindLecture || item.Item.LectureID == nil {
				continue
			}
			stats.LectureCount++
			if item.Lecture != nil && item.Lecture.Video != nil && item.Lecture.Video.TimeLength != nil {
				stats.TotalSeconds += *item.Lecture.Video.TimeLength
			}
		}
	}
	return stats
}

// CompletionPercent formats completed/total as an integer percent string,
// e.g. "40%". A zero lecture total yields "0%" rather than an error.
func CompletionPercent(completedCount, totalLectures int) string {
	if totalLectures <= 0 {
		return "0%"
	}
	pct := math.Round(float64(completedCount) / float64(totalLectures) * 100)
	return strconv.Itoa(int(pct)) + "%"
}

// AverageRating averages the non-deleted reviews to two decimal places,
// returning "0" when no review qualifies.
func AverageRating(reviews []models.Review) string {
	var sum, count int
	for _, review := range reviews {
		if review.IsDeleted {
			continue
		}
		sum += review.Rating
		count++
	}
	if count == 0 {
		return "0"
	}
	avg := math.Round(float64(sum)/float64(count)*100) / 100
	return strconv.FormatFloat(avg, 'f', 2, 64)
}
