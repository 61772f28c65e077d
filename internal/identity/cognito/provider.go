// Package cognito adapts an AWS Cognito user pool app client to the identity
// provider interface.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"inventoflow/internal/identity"
)

// API is the subset of the Cognito client used by Provider.
type API interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	ForgotPassword(ctx context.Context, in *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, in *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

type Provider struct {
	api      API
	clientID string
	logger   *zap.Logger
	now      func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New loads the default AWS configuration for region and returns a provider
// for the app client.
func New(ctx context.Context, region, clientID string, logger *zap.Logger) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewWithAPI(cip.NewFromConfig(cfg), clientID, logger), nil
}

func NewWithAPI(api API, clientID string, logger *zap.Logger) *Provider {
	return &Provider{api: api, clientID: clientID, logger: logger, now: time.Now}
}

func (p *Provider) SignUp(ctx context.Context, email, password, name string) error {
	attrs := []types.AttributeType{{Name: aws.String("email"), Value: aws.String(email)}}
	if name != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(name)})
	}
	_, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(email),
		Password:       aws.String(password),
		UserAttributes: attrs,
	})
	return classify("sign up", err)
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	return classify("confirm sign up", err)
}

func (p *Provider) Authenticate(ctx context.Context, email, password string) (*identity.Tokens, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(p.clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, classify("login", err)
	}
	return p.tokens("login", out)
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(p.clientID),
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return nil, classify("refresh", err)
	}
	return p.tokens("refresh", out)
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	_, err := p.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(email),
	})
	return classify("forgot password", err)
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	_, err := p.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	return classify("reset password", err)
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*identity.Attributes, error) {
	out, err := p.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return nil, classify("get user", err)
	}
	attrs := &identity.Attributes{}
	for _, a := range out.UserAttributes {
		switch aws.ToString(a.Name) {
		case "email":
			attrs.Email = aws.ToString(a.Value)
		case "name":
			attrs.Name = aws.ToString(a.Value)
		}
	}
	return attrs, nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	_, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)})
	return classify("sign out", err)
}

func (p *Provider) tokens(op string, out *cip.InitiateAuthOutput) (*identity.Tokens, error) {
	res := out.AuthenticationResult
	if res == nil {
		// MFA and new-password challenges are not supported by the console.
		return nil, &identity.AuthError{
			Op:      op,
			Message: fmt.Sprintf("Unsupported authentication challenge: %s", out.ChallengeName),
		}
	}
	return &identity.Tokens{
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresAt:    p.now().Add(time.Duration(res.ExpiresIn) * time.Second),
	}, nil
}

// classify maps Cognito exceptions to identity errors, keeping the service
// message.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		codeMismatch *types.CodeMismatchException
		expiredCode  *types.ExpiredCodeException
	)
	if errors.As(err, &codeMismatch) || errors.As(err, &expiredCode) {
		return &identity.ConfirmationError{Op: op, Message: serviceMessage(err), Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &identity.AuthError{Op: op, Message: serviceMessage(err), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func serviceMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	return err.Error()
}
