package eamis

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func activated(t *testing.T, portal *fakePortal) *Client {
	client, _ := newTestClient(t, portal)
	ok, err := client.Activate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return client
}

func TestPrepareCatch(t *testing.T) {
	portal := newFakePortal(t, twoProfiles()...)
	client := activated(t, portal)

	prepared, err := client.PrepareCatch(context.Background(), CatchPlan{
		{ProfileId: "1001", LessonNos: []string{"0002", "9999", "0001"}},
		{ProfileId: "404", LessonNos: []string{"0001"}},
		{ProfileId: "1002", LessonNos: []string{"0101"}},
	})
	require.NoError(t, err)
	require.Len(t, prepared.Items, 5)

	require.Equal(t, CatchItem{ProfileId: "1001", SemesterId: "4324", LessonNo: "0002", LessonId: 354162}, prepared.Items[0])
	require.ErrorIs(t, prepared.Items[1].Err, ErrLessonNotFound)
	require.Equal(t, 354161, prepared.Items[2].LessonId)

	var statusErr *StatusError
	require.ErrorAs(t, prepared.Items[3].Err, &statusErr)
	require.Equal(t, "404", prepared.Items[3].ProfileId)

	require.NoError(t, prepared.Items[4].Err)
	require.Equal(t, 354170, prepared.Items[4].LessonId)

	require.Len(t, prepared.Lessons, 2)
	require.Len(t, prepared.Lessons["1001"], 2)
}

func TestSpeedCatch(t *testing.T) {
	portal := newFakePortal(t, twoProfiles()...)
	portal.electStatus[354162] = http.StatusInternalServerError
	client := activated(t, portal)
	ctx := context.Background()

	prepared, err := client.PrepareCatch(ctx, CatchPlan{
		{ProfileId: "1001", LessonNos: []string{"0001", "0002"}},
		{ProfileId: "1002", LessonNos: []string{"0101"}},
	})
	require.NoError(t, err)

	start := time.Now()
	var outcomes []CatchOutcome
	for outcome := range client.SpeedCatch(ctx, prepared, 100*time.Millisecond) {
		outcomes = append(outcomes, outcome)
	}
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	require.Len(t, outcomes, 3)
	require.Equal(t, "0001", outcomes[0].LessonNo)
	require.NoError(t, outcomes[0].Err)
	require.True(t, outcomes[0].Result.Data.Elected)

	require.Equal(t, "0002", outcomes[1].LessonNo)
	var statusErr *StatusError
	require.ErrorAs(t, outcomes[1].Err, &statusErr)

	require.Equal(t, "0101", outcomes[2].LessonNo)
	require.Equal(t, "1002", outcomes[2].ProfileId)
	require.NoError(t, outcomes[2].Err)
	require.Equal(t, 354170, outcomes[2].Result.Data.Id)

	// paced and sequential
	submissions := portal.Requests(PathBatchOperator)
	require.Len(t, submissions, 3)
	for i := 1; i < len(submissions); i++ {
		require.GreaterOrEqual(t, submissions[i].at.Sub(submissions[i-1].at), 100*time.Millisecond)
	}
}

func TestSpeedCatchUnpreparedItemsKeepTheirSlot(t *testing.T) {
	portal := newFakePortal(t, twoProfiles()...)
	client := activated(t, portal)

	failure := errors.New("could not prepare")
	prepared := PreparedCatch{Items: []CatchItem{
		{ProfileId: "1001", SemesterId: "4324", LessonNo: "0001", LessonId: 354161},
		{ProfileId: "1001", LessonNo: "0003", Err: failure},
		{ProfileId: "1001", SemesterId: "4324", LessonNo: "0002", LessonId: 354162},
	}}

	var outcomes []CatchOutcome
	for outcome := range client.SpeedCatch(context.Background(), prepared, 0) {
		outcomes = append(outcomes, outcome)
	}
	require.Len(t, outcomes, 3)
	require.ErrorIs(t, outcomes[1].Err, failure)
	require.NoError(t, outcomes[2].Err)
	require.Len(t, portal.Requests(PathBatchOperator), 2)
}

func TestSpeedCatchCancelled(t *testing.T) {
	portal := newFakePortal(t, twoProfiles()...)
	client := activated(t, portal)

	prepared := PreparedCatch{Items: []CatchItem{
		{ProfileId: "1001", SemesterId: "4324", LessonNo: "0001", LessonId: 354161},
		{ProfileId: "1001", SemesterId: "4324", LessonNo: "0002", LessonId: 354162},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	outcomes := client.SpeedCatch(ctx, prepared, time.Hour)
	cancel()

	select {
	case _, ok := <-outcomes:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel was not closed after cancellation")
	}
	require.Empty(t, portal.Requests(PathBatchOperator))
}

func TestCatch(t *testing.T) {
	portal := newFakePortal(t, twoProfiles()...)
	client := activated(t, portal)

	prepared, outcomes, err := client.Catch(context.Background(), CatchPlan{
		{ProfileId: "1002", LessonNos: []string{"0101"}},
	}, 0)
	require.NoError(t, err)
	require.Len(t, prepared.Items, 1)

	count := 0
	for outcome := range outcomes {
		require.NoError(t, outcome.Err)
		count++
	}
	require.Equal(t, 1, count)
}
