package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/clock"
	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type timeoutFixture struct {
	db       *memDB
	gw       *recordingGateway
	clk      *clock.Fake
	sessions *service.SessionManager
	timeouts *service.TimeoutService
}

func newTimeoutFixture(cfg service.TimeoutConfig) *timeoutFixture {
	db := newMemDB()
	gw := &recordingGateway{}
	clk := clock.NewFake(baseTime)
	logger := zap.NewNop()

	sessions := service.NewSessionManager(db, gw, logger)
	timeouts := service.NewTimeoutService(db, db, sessions, gw, clk, cfg, logger)

	return &timeoutFixture{db: db, gw: gw, clk: clk, sessions: sessions, timeouts: timeouts}
}

func answer(text string) *string { return &text }

func TestProcessDue_PendingWithoutAnswers_Refunds(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(90)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	r2 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, nil)
	f.db.assign(c.ID, r2.ID, nil)

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.TickResult{Scanned: 1, Resolved: 1}, result)

	got := f.db.consultation(c.ID)
	assert.Equal(t, model.ConsultationStatusRefunded, got.Status)
	assert.Nil(t, got.TimeoutAt)
	assert.NotNil(t, got.FinishedAt)

	assert.Equal(t, int64(100), f.db.user(user.ID).EnergyBalance)
	assert.Equal(t, int64(90), f.db.researcher(r1.ID).RecommendScore)
	assert.Equal(t, int64(90), f.db.researcher(r2.ID).RecommendScore)

	assert.Equal(t, []int64{r1.ChatID, r2.ChatID}, f.gw.chats(notify.KindTimeout))
	assert.Equal(t, []int64{user.ChatID}, f.gw.chats(notify.KindRefunded))

	ledger := f.db.ledgerFor(c.ID)
	require.Len(t, ledger, 1)
	assert.Equal(t, model.LedgerKindRefund, ledger[0].Kind)
	assert.Equal(t, int64(10), ledger[0].Amount)
}

func TestProcessDue_PendingWithAnswer_MovesToSelection(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(90)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	r2 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, answer("buy the dip"))
	f.db.assign(c.ID, r2.ID, nil)

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)

	got := f.db.consultation(c.ID)
	assert.Equal(t, model.ConsultationStatusWaitingSelect, got.Status)
	require.NotNil(t, got.TimeoutAt)
	assert.Equal(t, baseTime.Add(3*time.Minute), *got.TimeoutAt)

	assert.Equal(t, int64(100), f.db.researcher(r1.ID).RecommendScore)
	assert.Equal(t, int64(90), f.db.researcher(r2.ID).RecommendScore)
	assert.Equal(t, []int64{r2.ChatID}, f.gw.chats(notify.KindTimeout))

	notices := f.gw.byKind(notify.KindSelectionOpen)
	require.Len(t, notices, 1)
	assert.Equal(t, user.ChatID, notices[0].ChatID)
	assert.Equal(t, 1, notices[0].Payload.Answers)
	assert.Equal(t, 3*time.Minute, notices[0].Payload.Timeout)

	assert.Equal(t, int64(90), f.db.user(user.ID).EnergyBalance)
	assert.Empty(t, f.gw.byKind(notify.KindRefunded))
	assert.Empty(t, f.db.ledgerFor(c.ID))
}

func TestProcessDue_AnswerBetweenScanAndRefetch_IsNotPenalized(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(90)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	r2 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, nil)
	f.db.assign(c.ID, r2.ID, nil)

	// В момент поиска никто не ответил; r1 отвечает прямо перед повторным чтением
	f.db.beforeFindAssignments = func(id int64) {
		if id == c.ID {
			f.db.answerDirectly(c.ID, r1.ID, "late but in time")
		}
	}

	_, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.ConsultationStatusWaitingSelect, f.db.consultation(c.ID).Status)
	assert.Equal(t, int64(100), f.db.researcher(r1.ID).RecommendScore)
	assert.Equal(t, int64(90), f.db.researcher(r2.ID).RecommendScore)
	assert.Equal(t, []int64{r2.ChatID}, f.gw.chats(notify.KindTimeout))
	assert.Equal(t, int64(90), f.db.user(user.ID).EnergyBalance)
}

func TestProcessDue_TwiceInARow_NoDoubleEffects(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	r2 := f.db.addResearcher(100, model.ResearcherStatusOnline)

	refundCase := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(refundCase.ID, r1.ID, nil)

	selectCase := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(selectCase.ID, r1.ID, answer("hold"))
	f.db.assign(selectCase.ID, r2.ID, nil)

	first, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Resolved)

	second, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.TickResult{}, second)

	assert.Equal(t, int64(10), f.db.user(user.ID).EnergyBalance)
	assert.Equal(t, int64(90), f.db.researcher(r1.ID).RecommendScore)
	assert.Equal(t, int64(90), f.db.researcher(r2.ID).RecommendScore)
	assert.Len(t, f.gw.byKind(notify.KindTimeout), 2)
	assert.Len(t, f.gw.byKind(notify.KindRefunded), 1)

	// Окно выбора истекло: возврат без повторных штрафов
	f.clk.Advance(3*time.Minute + time.Second)
	third, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Resolved)

	assert.Equal(t, model.ConsultationStatusRefunded, f.db.consultation(selectCase.ID).Status)
	assert.Equal(t, int64(20), f.db.user(user.ID).EnergyBalance)
	assert.Equal(t, int64(90), f.db.researcher(r2.ID).RecommendScore)
	assert.Len(t, f.gw.byKind(notify.KindTimeout), 2)
}

func TestProcessDue_WaitingSelectExpired_Refunds(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	r2 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusWaitingSelect, baseTime.Add(-time.Second), 25)
	f.db.assign(c.ID, r1.ID, answer("a"))
	f.db.assign(c.ID, r2.ID, answer("b"))

	_, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.ConsultationStatusRefunded, f.db.consultation(c.ID).Status)
	assert.Equal(t, int64(25), f.db.user(user.ID).EnergyBalance)
	assert.Equal(t, int64(100), f.db.researcher(r1.ID).RecommendScore)
	assert.Equal(t, int64(100), f.db.researcher(r2.ID).RecommendScore)
	assert.Empty(t, f.gw.byKind(notify.KindTimeout))
}

func TestProcessDue_InProgressExpired_CompletesOnce(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(100, model.ResearcherStatusBusy)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusInProgress, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, answer("a"))
	f.db.selectResearcher(c.ID, r1.ID)

	for i := 0; i < 2; i++ {
		_, err := f.timeouts.ProcessDue(ctx)
		require.NoError(t, err)
	}

	got := f.db.consultation(c.ID)
	assert.Equal(t, model.ConsultationStatusCompleted, got.Status)
	assert.Nil(t, got.TimeoutAt)

	researcher := f.db.researcher(r1.ID)
	assert.Equal(t, int64(10), researcher.EarnedEnergy)
	assert.Equal(t, model.ResearcherStatusOnline, researcher.Status)

	ledger := f.db.ledgerFor(c.ID)
	require.Len(t, ledger, 1)
	assert.Equal(t, model.LedgerKindPayout, ledger[0].Kind)

	assert.Equal(t, []int64{user.ChatID, r1.ChatID}, f.gw.chats(notify.KindCompleted))
	assert.Equal(t, int64(0), f.db.user(user.ID).EnergyBalance)
}

func TestProcessDue_FailureIsContainedAndRetried(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	broken := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-2*time.Second), 10)
	f.db.assign(broken.ID, r1.ID, nil)
	healthy := f.db.addConsultation(user.ID, model.ConsultationStatusWaitingSelect, baseTime.Add(-time.Second), 10)

	f.db.lockErr[broken.ID] = errors.New("connection reset")

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.TickResult{Scanned: 2, Resolved: 1, Failed: 1}, result)

	assert.Equal(t, model.ConsultationStatusPending, f.db.consultation(broken.ID).Status)
	assert.Equal(t, model.ConsultationStatusRefunded, f.db.consultation(healthy.ID).Status)

	// Следующий проход подхватывает всё ещё просроченную консультацию
	delete(f.db.lockErr, broken.ID)
	result, err = f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, model.ConsultationStatusRefunded, f.db.consultation(broken.ID).Status)
	assert.Equal(t, int64(20), f.db.user(user.ID).EnergyBalance)
}

func TestProcessDue_PartialFailureRollsBackEverything(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(90)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	r2 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, nil)
	f.db.assign(c.ID, r2.ID, nil)

	f.db.decrementErr[r2.ID] = errors.New("deadlock detected")

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, model.ConsultationStatusPending, f.db.consultation(c.ID).Status)
	assert.Equal(t, int64(90), f.db.user(user.ID).EnergyBalance)
	assert.Equal(t, int64(100), f.db.researcher(r1.ID).RecommendScore)
	assert.Empty(t, f.db.ledgerFor(c.ID))
	assert.Empty(t, f.gw.sent)
}

func TestProcessDue_ScoreFloor(t *testing.T) {
	floor := int64(0)
	f := newTimeoutFixture(service.TimeoutConfig{ScoreFloor: &floor})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(5, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, nil)

	_, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(0), f.db.researcher(r1.ID).RecommendScore)
}

func TestProcessDue_NoFloorAllowsNegativeScore(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{MissedAnswerPenalty: 10})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(5, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, nil)

	_, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(-5), f.db.researcher(r1.ID).RecommendScore)
}

func TestProcessDue_IgnoresFutureAndTerminal(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	future := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(time.Minute), 10)
	done := f.db.addConsultation(user.ID, model.ConsultationStatusCompleted, baseTime.Add(-time.Hour), 10)

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)

	assert.Equal(t, model.ConsultationStatusPending, f.db.consultation(future.ID).Status)
	assert.Equal(t, model.ConsultationStatusCompleted, f.db.consultation(done.ID).Status)
	assert.Empty(t, f.gw.sent)
}

func TestProcessDue_ConsultationAdvancedAfterScan_IsSkipped(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	r1 := f.db.addResearcher(100, model.ResearcherStatusOnline)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusPending, baseTime.Add(-time.Second), 10)
	f.db.assign(c.ID, r1.ID, nil)

	// Между поиском и блокировкой консультацию продвинул другой путь
	f.db.beforeLock = func(id int64) {
		if id == c.ID {
			f.db.moveDirectly(c.ID, model.ConsultationStatusInProgress, baseTime.Add(30*time.Minute))
		}
	}

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.TickResult{Scanned: 1, Skipped: 1}, result)
	assert.Equal(t, int64(100), f.db.researcher(r1.ID).RecommendScore)
	assert.Empty(t, f.gw.sent)
}

func TestProcessDue_InProgressWithoutResearcher_CountsAsFailed(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	c := f.db.addConsultation(user.ID, model.ConsultationStatusInProgress, baseTime.Add(-time.Second), 10)

	for i := 0; i < 2; i++ {
		result, err := f.timeouts.ProcessDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, service.TickResult{Scanned: 1, Failed: 1}, result)
	}

	assert.Equal(t, model.ConsultationStatusInProgress, f.db.consultation(c.ID).Status)
	assert.Empty(t, f.db.ledgerFor(c.ID))
	assert.Empty(t, f.gw.sent)
}

func TestProcessDue_PanicIsContained(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	ctx := context.Background()

	user := f.db.addUser(0)
	bad := f.db.addConsultation(user.ID, model.ConsultationStatusWaitingSelect, baseTime.Add(-2*time.Second), 10)
	good := f.db.addConsultation(user.ID, model.ConsultationStatusWaitingSelect, baseTime.Add(-time.Second), 10)
	f.db.panicOnLock[bad.ID] = true

	var result service.TickResult
	var err error
	require.NotPanics(t, func() {
		result, err = f.timeouts.ProcessDue(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.ConsultationStatusRefunded, f.db.consultation(good.ID).Status)
}

func TestProcessDue_FindDueError(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{})
	f.db.findDueErr = errors.New("db down")

	_, err := f.timeouts.ProcessDue(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestProcessDue_RespectsBatchSize(t *testing.T) {
	f := newTimeoutFixture(service.TimeoutConfig{BatchSize: 2})
	ctx := context.Background()

	user := f.db.addUser(0)
	for i := 0; i < 3; i++ {
		f.db.addConsultation(user.ID, model.ConsultationStatusWaitingSelect, baseTime.Add(-time.Duration(i+1)*time.Second), 10)
	}

	result, err := f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Resolved)

	result, err = f.timeouts.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)
}
