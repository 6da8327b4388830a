package whoop

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// MaxLimit is the maximum number of records per collection request.
const MaxLimit = 25

// GetProfile returns the user's basic profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, "/v2/user/profile/basic", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetBodyMeasurements returns the user's height, weight, and max heart rate.
func (c *Client) GetBodyMeasurements(ctx context.Context) (*BodyMeasurement, error) {
	var measurement BodyMeasurement
	if err := c.get(ctx, "/v2/user/measurement/body", &measurement); err != nil {
		return nil, err
	}
	return &measurement, nil
}

// GetCycles returns the user's physiological cycles, most recent first.
func (c *Client) GetCycles(ctx context.Context, params ListParams) (*CycleCollection, error) {
	var collection CycleCollection
	if err := c.get(ctx, collectionPath("/v2/cycle", params), &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetCycleByID returns a single cycle.
func (c *Client) GetCycleByID(ctx context.Context, cycleID int64) (*Cycle, error) {
	if cycleID <= 0 {
		return nil, fmt.Errorf("invalid cycle ID: %d", cycleID)
	}
	var cycle Cycle
	if err := c.get(ctx, fmt.Sprintf("/v2/cycle/%d", cycleID), &cycle); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetRecoveries returns the user's recovery records.
func (c *Client) GetRecoveries(ctx context.Context, params ListParams) (*RecoveryCollection, error) {
	var collection RecoveryCollection
	if err := c.get(ctx, collectionPath("/v2/recovery", params), &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetRecoveryForCycle returns the recovery for a specific cycle.
func (c *Client) GetRecoveryForCycle(ctx context.Context, cycleID int64) (*Recovery, error) {
	if cycleID <= 0 {
		return nil, fmt.Errorf("invalid cycle ID: %d", cycleID)
	}
	var recovery Recovery
	if err := c.get(ctx, fmt.Sprintf("/v2/cycle/%d/recovery", cycleID), &recovery); err != nil {
		return nil, err
	}
	return &recovery, nil
}

// GetSleeps returns the user's sleep records.
func (c *Client) GetSleeps(ctx context.Context, params ListParams) (*SleepCollection, error) {
	var collection SleepCollection
	if err := c.get(ctx, collectionPath("/v2/activity/sleep", params), &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetSleepByID returns a single sleep record by its UUID.
func (c *Client) GetSleepByID(ctx context.Context, sleepID string) (*Sleep, error) {
	if _, err := uuid.Parse(sleepID); err != nil {
		return nil, fmt.Errorf("invalid sleep ID %q: must be a UUID", sleepID)
	}
	var sleep Sleep
	if err := c.get(ctx, "/v2/activity/sleep/"+sleepID, &sleep); err != nil {
		return nil, err
	}
	return &sleep, nil
}

// GetSleepForCycle returns the sleep record for a specific cycle.
func (c *Client) GetSleepForCycle(ctx context.Context, cycleID int64) (*Sleep, error) {
	if cycleID <= 0 {
		return nil, fmt.Errorf("invalid cycle ID: %d", cycleID)
	}
	var sleep Sleep
	if err := c.get(ctx, fmt.Sprintf("/v2/cycle/%d/sleep", cycleID), &sleep); err != nil {
		return nil, err
	}
	return &sleep, nil
}

// GetWorkouts returns the user's workout records.
func (c *Client) GetWorkouts(ctx context.Context, params ListParams) (*WorkoutCollection, error) {
	var collection WorkoutCollection
	if err := c.get(ctx, collectionPath("/v2/activity/workout", params), &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetWorkoutByID returns a single workout by its UUID.
func (c *Client) GetWorkoutByID(ctx context.Context, workoutID string) (*Workout, error) {
	if _, err := uuid.Parse(workoutID); err != nil {
		return nil, fmt.Errorf("invalid workout ID %q: must be a UUID", workoutID)
	}
	var workout Workout
	if err := c.get(ctx, "/v2/activity/workout/"+workoutID, &workout); err != nil {
		return nil, err
	}
	return &workout, nil
}

// collectionPath appends pagination parameters to a collection endpoint.
func collectionPath(path string, params ListParams) string {
	values := url.Values{}
	if params.Start != "" {
		values.Set("start", params.Start)
	}
	if params.End != "" {
		values.Set("end", params.End)
	}
	if params.Limit > 0 {
		limit := params.Limit
		if limit > MaxLimit {
			limit = MaxLimit
		}
		values.Set("limit", strconv.Itoa(limit))
	}
	if params.NextToken != "" {
		values.Set("nextToken", params.NextToken)
	}
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}
