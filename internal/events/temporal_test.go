package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type RelayWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment
}

func (s *RelayWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&Activities{})
}

func (s *RelayWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *RelayWorkflowTestSuite) Test_DrainsEachRound() {
	var a *Activities
	s.env.OnActivity(a.DrainOutbox, mock.Anything, 50).Return(2, nil).Times(3)

	s.env.ExecuteWorkflow(RelayOutbox, RelayInput{Interval: time.Second, BatchSize: 50, Rounds: 3})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var res RelayResult
	s.NoError(s.env.GetWorkflowResult(&res))
	s.Equal(3, res.Rounds)
	s.Equal(6, res.Delivered)
}

func (s *RelayWorkflowTestSuite) Test_FailedRoundDoesNotStopRelay() {
	var a *Activities
	s.env.OnActivity(a.DrainOutbox, mock.Anything, mock.Anything).Return(0, temporal.NewNonRetryableApplicationError("drain failed", "DrainError", errors.New("database is locked"))).Once()
	s.env.OnActivity(a.DrainOutbox, mock.Anything, mock.Anything).Return(4, nil).Once()

	s.env.ExecuteWorkflow(RelayOutbox, RelayInput{Interval: time.Second, BatchSize: 10, Rounds: 2})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var res RelayResult
	s.NoError(s.env.GetWorkflowResult(&res))
	s.Equal(2, res.Rounds)
	s.Equal(4, res.Delivered)
}

func TestRelayWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(RelayWorkflowTestSuite))
}
