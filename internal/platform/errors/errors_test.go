package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCode(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeInvalidInput, codes.InvalidArgument},
		{CodeDicePoolSizeInvalid, codes.InvalidArgument},
		{CodeSkillNegative, codes.InvalidArgument},
		{CodeReferenceMissing, codes.InvalidArgument},
		{CodeMagazineMissing, codes.FailedPrecondition},
		{CodeMagazineEmpty, codes.FailedPrecondition},
		{CodeMagazineChanged, codes.FailedPrecondition},
		{CodeOpposedInvalidState, codes.FailedPrecondition},
		{CodeOpposedCounterpartMissing, codes.NotFound},
		{CodeOpposedSessionNotFound, codes.NotFound},
		{CodeNotFound, codes.NotFound},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			require.Equal(t, tt.want, tt.code.GRPCCode())
		})
	}
}

func TestErrorIsByCode(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("fire: %w", Wrap(CodeMagazineEmpty, "magazine empty", cause))

	require.ErrorIs(t, err, New(CodeMagazineEmpty, ""))
	require.NotErrorIs(t, err, New(CodeMagazineMissing, ""))
	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeMagazineEmpty, CodeOf(err))
	require.Equal(t, CodeUnknown, CodeOf(cause))
}

func TestErrorMessageFallsBackToCause(t *testing.T) {
	err := Wrap(CodeInvalidInput, "", stderrors.New("bad aiming"))
	require.Equal(t, "bad aiming", err.Error())
	require.Equal(t, "explicit", New(CodeInvalidInput, "explicit").Error())
}

func TestToGRPCStatus(t *testing.T) {
	err := WithMetadata(CodeMagazineEmpty, "magazine m1 empty", map[string]string{"Weapon": "rifle"})
	st, ok := status.FromError(err.ToGRPCStatus("en-US", "The magazine of rifle is empty"))
	require.True(t, ok)
	require.Equal(t, codes.FailedPrecondition, st.Code())
	require.Equal(t, "magazine m1 empty", st.Message())

	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			info = v
		case *errdetails.LocalizedMessage:
			localized = v
		}
	}
	require.NotNil(t, info)
	require.Equal(t, string(CodeMagazineEmpty), info.Reason)
	require.Equal(t, Domain, info.Domain)
	require.Equal(t, "rifle", info.Metadata["Weapon"])
	require.NotNil(t, localized)
	require.Equal(t, "en-US", localized.Locale)
}
