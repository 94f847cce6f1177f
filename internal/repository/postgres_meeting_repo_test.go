package repository

import (
	"testing"
)

// PostgresMeetingRepoはMeetingRepositoryインターフェースを満たすことを検証
func TestPostgresMeetingRepo_ImplementsInterface(t *testing.T) {
	var _ MeetingRepository = (*PostgresMeetingRepo)(nil)
}

// PostgresTeamRepoはTeamRepositoryインターフェースを満たすことを検証
func TestPostgresTeamRepo_ImplementsInterface(t *testing.T) {
	var _ TeamRepository = (*PostgresTeamRepo)(nil)
}

// PostgresRouteTimeRepoはRouteTimeEventRepositoryインターフェースを満たすことを検証
func TestPostgresRouteTimeRepo_ImplementsInterface(t *testing.T) {
	var _ RouteTimeEventRepository = (*PostgresRouteTimeRepo)(nil)
}

// NewPostgresMeetingRepoが正しく初期化されることを検証
func TestNewPostgresMeetingRepo_Initializes(t *testing.T) {
	repo := NewPostgresMeetingRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresTeamRepoが正しく初期化されることを検証
func TestNewPostgresTeamRepo_Initializes(t *testing.T) {
	repo := NewPostgresTeamRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
