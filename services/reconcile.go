package services

import (
	"encoding/json"
	"time"

	"student-progress-system/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// acceptedVerdict is the judge's sentinel for a passing submission.
const acceptedVerdict = "OK"

// problemKey builds the natural key for a judge problem: the contest-local
// index concatenated with the problem name. This matches the judge's own
// dedup granularity for problems reused across contests.
func problemKey(p CFProblem) string {
	return p.Index + p.Name
}

// reconcile merges one student's freshly fetched judge data into storage as a
// single transaction. On any error the transaction rolls back and the prior
// state stands until the next attempt.
//
// Problems are first-write-wins (immutable reference data), contests are
// replaced wholesale (derived from rating history), and submissions are
// upserted by judge submission id so re-fetching never duplicates rows.
func (s *SyncService) reconcile(student *models.Student, user *CFUser, submissions []CFSubmission, history []CFRatingChange) error {
	now := time.Now()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Student{}).
			Where("id = ?", student.ID).
			Updates(map[string]interface{}{
				"current_rating": user.Rating,
				"max_rating":     user.MaxRating,
				"last_data_sync": now,
			}).Error; err != nil {
			return err
		}

		if err := upsertProblems(tx, submissions); err != nil {
			return err
		}

		if err := tx.Where("student_id = ?", student.ID).Delete(&models.Contest{}).Error; err != nil {
			return err
		}
		for _, change := range history {
			var solved, attempted int
			for _, sub := range submissions {
				if sub.ContestID != change.ContestID {
					continue
				}
				attempted++
				if sub.Verdict == acceptedVerdict {
					solved++
				}
			}

			contest := models.Contest{
				ContestID:         change.ContestID,
				Name:              change.ContestName,
				StartTime:         time.Unix(change.RatingUpdateTimeSeconds, 0),
				Type:              "CF",
				Rank:              change.Rank,
				RatingChange:      change.NewRating - change.OldRating,
				ProblemsSolved:    solved,
				ProblemsAttempted: attempted,
				StudentID:         student.ID,
			}
			if err := tx.Create(&contest).Error; err != nil {
				return err
			}
		}

		for _, sub := range submissions {
			row := models.Submission{
				SubmissionID:   sub.ID,
				ProblemID:      problemKey(sub.Problem),
				Verdict:        sub.Verdict,
				Language:       sub.ProgrammingLanguage,
				SubmissionTime: time.Unix(sub.CreationTimeSeconds, 0),
				ExecutionTime:  sub.TimeConsumedMillis,
				MemoryConsumed: float64(sub.MemoryConsumedBytes) / 1024,
				StudentID:      student.ID,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "submission_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"problem_id", "verdict", "language", "submission_time",
					"execution_time", "memory_consumed", "student_id", "updated_at",
				}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// upsertProblems ensures a Problem row exists for every problem referenced by
// the submission list. Existing rows are left untouched even if the remote
// payload now disagrees.
func upsertProblems(tx *gorm.DB, submissions []CFSubmission) error {
	seen := make(map[string]bool, len(submissions))
	for _, sub := range submissions {
		key := problemKey(sub.Problem)
		if seen[key] {
			continue
		}
		seen[key] = true

		tagList := sub.Problem.Tags
		if tagList == nil {
			tagList = []string{}
		}
		tags, err := json.Marshal(tagList)
		if err != nil {
			return err
		}
		row := models.Problem{
			ProblemID: key,
			Name:      sub.Problem.Name,
			Slug:      slug.Make(sub.Problem.Name),
			Rating:    sub.Problem.Rating,
			Tags:      string(tags),
			ContestID: sub.Problem.ContestID,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "problem_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
