package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/marketbill/internal/activity"
	"github.com/edvin/marketbill/internal/billing"
)

type BillingCycleWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *BillingCycleWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	// Registered so the test framework knows parameter and return types;
	// the activity itself is mocked via OnActivity.
	s.env.RegisterActivity(&activity.Billing{})
}

func (s *BillingCycleWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *BillingCycleWorkflowTestSuite) TestCycleSucceeds() {
	s.env.OnActivity("RunBillingCycle", mock.Anything, mock.Anything).
		Return(&billing.Summary{Renewed: 2, Locked: 1}, nil)

	s.env.ExecuteWorkflow(BillingCycleWorkflow)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var summary billing.Summary
	s.NoError(s.env.GetWorkflowResult(&summary))
	s.Equal(2, summary.Renewed)
	s.Equal(1, summary.Locked)
}

func (s *BillingCycleWorkflowTestSuite) TestCycleFails() {
	s.env.OnActivity("RunBillingCycle", mock.Anything, mock.Anything).
		Return(nil, errors.New("sweep query failed"))

	s.env.ExecuteWorkflow(BillingCycleWorkflow)

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestBillingCycleWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(BillingCycleWorkflowTestSuite))
}
