//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"

	jwttoken "guardian/internal/jwt_token"
)

// RegisterSteps registers all step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the compliance engine is running$`, tc.engineIsRunning)

	// Identity steps
	ctx.Step(`^I am signed in as "([^"]*)" with roles "([^"]*)"$`, tc.signIn)
	ctx.Step(`^I am anonymous$`, tc.anonymous)

	// Request steps
	ctx.Step(`^I POST to "([^"]*)" with body:$`, tc.postWithBody)
	ctx.Step(`^I POST to "([^"]*)" with an empty object$`, tc.postEmpty)
	ctx.Step(`^I POST to "([^"]*)" without a body$`, tc.postWithoutBody)
	ctx.Step(`^I GET "([^"]*)"$`, tc.get)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, tc.saveField)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should list "([^"]*)"$`, tc.responseFieldShouldList)
}

func (tc *TestContext) engineIsRunning(ctx context.Context) error {
	if err := tc.Do(http.MethodGet, "/health/live", nil); err != nil {
		return err
	}
	if tc.LastStatus() != http.StatusOK {
		return fmt.Errorf("liveness probe returned %d", tc.LastStatus())
	}
	return nil
}

func (tc *TestContext) signIn(ctx context.Context, reviewerID, roles string) error {
	svc := jwttoken.NewJWTService(tc.SigningKey, "guardian", time.Hour)
	token, err := svc.Issue(tc.expand(reviewerID), strings.Split(roles, ","), time.Now())
	if err != nil {
		return err
	}
	tc.Token = token
	return nil
}

func (tc *TestContext) anonymous(ctx context.Context) error {
	tc.Token = ""
	return nil
}

func (tc *TestContext) postWithBody(ctx context.Context, path string, body *godog.DocString) error {
	return tc.Do(http.MethodPost, path, []byte(tc.expand(body.Content)))
}

func (tc *TestContext) postEmpty(ctx context.Context, path string) error {
	return tc.Do(http.MethodPost, path, []byte("{}"))
}

func (tc *TestContext) postWithoutBody(ctx context.Context, path string) error {
	return tc.Do(http.MethodPost, path, nil)
}

func (tc *TestContext) get(ctx context.Context, path string) error {
	return tc.Do(http.MethodGet, path, nil)
}

func (tc *TestContext) saveField(ctx context.Context, field, name string) error {
	v, err := tc.ResponseField(field)
	if err != nil {
		return err
	}
	tc.Saved[name] = fmt.Sprint(v)
	return nil
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if tc.LastStatus() != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, tc.LastStatus(), tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseShouldContain(ctx context.Context, text string) error {
	if !strings.Contains(string(tc.LastResponseBody), tc.expand(text)) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", text, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	actual, err := tc.ResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actual) != tc.expand(expectedValue) {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actual)
	}
	return nil
}

// responseFieldShouldList checks that a list of objects carries an element
// whose "field" key matches, as in validation error responses.
func (tc *TestContext) responseFieldShouldList(ctx context.Context, field, name string) error {
	actual, err := tc.ResponseField(field)
	if err != nil {
		return err
	}
	items, ok := actual.([]any)
	if !ok {
		return fmt.Errorf("field %s is not a list", field)
	}
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok && obj["field"] == name {
			return nil
		}
	}
	return fmt.Errorf("field %s does not list %q", field, name)
}
