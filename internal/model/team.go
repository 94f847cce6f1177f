// Package model はドメインモデルを定義する。
package model

import "time"

// Team はミーティングを共有するユーザーのグループを表す。
// オーナーは常にメンバーに含まれる。
type Team struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamWithMembers はチームとメンバーID一覧を結合した構造体。
type TeamWithMembers struct {
	Team
	MemberIDs []string
}
