package ranking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/storage/memory"
	"github.com/obstaclehub/records-api/internal/testutil"
)

const testMapID = model.MapID(7)

type EngineSuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *redis.Client
	store  *memory.Store
	engine *Engine
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.store = memory.New()
	s.engine = New(s.client, s.store, testutil.NopLogger())
	s.ctx = context.Background()

	s.store.AddMap(&model.Map{ID: testMapID, UID: "map-uid-7", Name: "Tower"})
}

// addRecord seeds a player (if new) and one of their records on the test map.
func (s *EngineSuite) addRecord(playerID model.PlayerID, t int32) {
	s.store.AddPlayer(&model.Player{
		ID:       playerID,
		Login:    fmt.Sprintf("player%d", playerID),
		Nickname: fmt.Sprintf("Player %d", playerID),
	})
	_, err := s.store.InsertRecord(s.ctx, &model.Record{
		PlayerID:   playerID,
		MapID:      testMapID,
		Time:       t,
		RecordDate: time.Now(),
	}, nil, model.OptEvent{})
	s.Require().NoError(err)
}

func (s *EngineSuite) key() string {
	return "v3:lb:7"
}

func (s *EngineSuite) TestGetRankRebuildsEmptyIndex() {
	s.addRecord(1, 100)
	s.addRecord(2, 120)

	rank, err := s.engine.GetRank(s.ctx, testMapID, 1, 100, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int32(1), rank)

	rank, err = s.engine.GetRank(s.ctx, testMapID, 2, 120, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int32(2), rank)
}

func (s *EngineSuite) TestTiedTimesShareRank() {
	s.addRecord(1, 100)
	s.addRecord(2, 100)
	s.addRecord(3, 120)

	for _, playerID := range []model.PlayerID{1, 2} {
		rank, err := s.engine.GetRank(s.ctx, testMapID, playerID, 100, model.OptEvent{})
		s.Require().NoError(err)
		s.Equal(int32(1), rank)
	}

	rank, err := s.engine.GetRank(s.ctx, testMapID, 3, 120, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int32(3), rank)
}

func (s *EngineSuite) TestGetRankRecoversFromLostMember() {
	s.addRecord(1, 100)
	s.addRecord(2, 110)
	s.addRecord(3, 120)
	_, err := s.engine.UpdateLeaderboard(s.ctx, testMapID, model.OptEvent{})
	s.Require().NoError(err)

	// Drop one member behind the engine's back.
	s.Require().NoError(s.client.ZRem(s.ctx, s.key(), "2").Err())

	rank, err := s.engine.GetRank(s.ctx, testMapID, 2, 110, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int32(2), rank)
}

func (s *EngineSuite) TestGetRankKeepsBetterStaleTime() {
	s.addRecord(1, 100)
	_, err := s.engine.UpdateLeaderboard(s.ctx, testMapID, model.OptEvent{})
	s.Require().NoError(err)

	// The index believes the player holds a better time than the store does.
	err = s.client.ZAdd(s.ctx, s.key(), redis.Z{Score: 90, Member: "1"}).Err()
	s.Require().NoError(err)

	rank, err := s.engine.GetRank(s.ctx, testMapID, 1, 100, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int32(1), rank)

	score, err := s.client.ZScore(s.ctx, s.key(), "1").Result()
	s.Require().NoError(err)
	s.Equal(float64(90), score)
}

func (s *EngineSuite) TestGetRankInconsistent() {
	// The store has no record of this time, so even a rebuild cannot rank it.
	s.addRecord(1, 100)

	_, err := s.engine.GetRank(s.ctx, testMapID, 2, 50, model.OptEvent{})
	s.ErrorIs(err, ErrInconsistent)
}

func (s *EngineSuite) TestUpdateLeaderboardCoherence() {
	s.addRecord(1, 100)
	s.addRecord(2, 110)

	count, err := s.engine.UpdateLeaderboard(s.ctx, testMapID, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	card, err := s.client.ZCard(s.ctx, s.key()).Result()
	s.Require().NoError(err)
	s.Equal(count, card)

	// A new record diverges the counts; the next check rebuilds.
	s.addRecord(3, 90)
	count, err = s.engine.UpdateLeaderboard(s.ctx, testMapID, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	card, err = s.client.ZCard(s.ctx, s.key()).Result()
	s.Require().NoError(err)
	s.Equal(count, card)
}

func (s *EngineSuite) TestUpdateRank() {
	s.addRecord(1, 100)
	s.Require().NoError(s.engine.UpdateRank(s.ctx, testMapID, 1, 100, model.OptEvent{}))

	score, err := s.client.ZScore(s.ctx, s.key(), "1").Result()
	s.Require().NoError(err)
	s.Equal(float64(100), score)
}

func (s *EngineSuite) TestForceRebuild() {
	s.addRecord(1, 100)

	// Poison the index with a member the store does not know.
	err := s.client.ZAdd(s.ctx, s.key(), redis.Z{Score: 10, Member: "99"}).Err()
	s.Require().NoError(err)

	s.Require().NoError(s.engine.ForceRebuild(s.ctx, testMapID, model.OptEvent{}))

	members, err := s.client.ZRange(s.ctx, s.key(), 0, -1).Result()
	s.Require().NoError(err)
	s.Equal([]string{"1"}, members)
}

func (s *EngineSuite) TestEventOverlayIsSeparate() {
	event := model.NewOptEvent(
		&model.Event{ID: 1, Handle: "cup"},
		&model.EventEdition{ID: 2, EventID: 1, Name: "Cup 2"},
	)
	s.store.AddEventEdition(event.Event, event.Edition)

	s.addRecord(1, 100)
	s.store.AddPlayer(&model.Player{ID: 2, Login: "player2", Nickname: "Player 2"})
	_, err := s.store.InsertRecord(s.ctx, &model.Record{
		PlayerID:   2,
		MapID:      testMapID,
		Time:       80,
		RecordDate: time.Now(),
	}, nil, event)
	s.Require().NoError(err)

	// Global view counts both records; the overlay only the linked one.
	rank, err := s.engine.GetRank(s.ctx, testMapID, 1, 100, model.OptEvent{})
	s.Require().NoError(err)
	s.Equal(int32(2), rank)

	rank, err = s.engine.GetRank(s.ctx, testMapID, 2, 80, event)
	s.Require().NoError(err)
	s.Equal(int32(1), rank)

	card, err := s.client.ZCard(s.ctx, "v3:event:cup:2:lb:7").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), card)
}

func (s *EngineSuite) TestLeaderboardSlice() {
	s.addRecord(1, 100)
	s.addRecord(2, 100)
	s.addRecord(3, 120)
	s.addRecord(4, 130)

	rows, err := s.engine.LeaderboardSlice(s.ctx, testMapID, 0, 3, model.OptEvent{})
	s.Require().NoError(err)
	s.Require().Len(rows, 3)

	s.Equal(int32(1), rows[0].Rank)
	s.Equal(int32(1), rows[1].Rank)
	s.Equal(int32(3), rows[2].Rank)
	s.Equal("player3", rows[2].Login)
	s.Equal("Player 3", rows[2].Nickname)
	s.Equal(int32(120), rows[2].Time)

	rows, err = s.engine.LeaderboardSlice(s.ctx, testMapID, 3, 3, model.OptEvent{})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(int32(4), rows[0].Rank)
}

func (s *EngineSuite) TestOverviewPlayerInTop() {
	for i := 1; i <= 30; i++ {
		s.addRecord(model.PlayerID(i), int32(100+i))
	}

	rows, err := s.engine.Overview(s.ctx, testMapID, 5, model.OptEvent{})
	s.Require().NoError(err)
	s.Require().Len(rows, 15)
	s.Equal(int32(1), rows[0].Rank)
	s.Equal("player5", rows[4].Login)
}

func (s *EngineSuite) TestOverviewPlayerBelowTop() {
	for i := 1; i <= 30; i++ {
		s.addRecord(model.PlayerID(i), int32(100+i))
	}

	rows, err := s.engine.Overview(s.ctx, testMapID, 20, model.OptEvent{})
	s.Require().NoError(err)
	s.Require().Len(rows, 15)

	// Top 3 followed by a window around the player.
	s.Equal(int32(1), rows[0].Rank)
	s.Equal(int32(2), rows[1].Rank)
	s.Equal(int32(3), rows[2].Rank)

	found := false
	for _, row := range rows {
		if row.Login == "player20" {
			found = true
		}
	}
	s.True(found)
}

func (s *EngineSuite) TestOverviewPlayerAtBottom() {
	for i := 1; i <= 30; i++ {
		s.addRecord(model.PlayerID(i), int32(100+i))
	}

	rows, err := s.engine.Overview(s.ctx, testMapID, 30, model.OptEvent{})
	s.Require().NoError(err)
	s.Require().Len(rows, 15)
	s.Equal("player30", rows[len(rows)-1].Login)
}

func (s *EngineSuite) TestOverviewAbsentPlayerLargeBoard() {
	for i := 1; i <= 30; i++ {
		s.addRecord(model.PlayerID(i), int32(100+i))
	}

	rows, err := s.engine.Overview(s.ctx, testMapID, 99, model.OptEvent{})
	s.Require().NoError(err)
	s.Require().Len(rows, 14)

	// Top 11 then the last 3.
	s.Equal(int32(11), rows[10].Rank)
	s.Equal(int32(28), rows[11].Rank)
	s.Equal(int32(30), rows[13].Rank)
}

func (s *EngineSuite) TestOverviewAbsentPlayerSmallBoard() {
	for i := 1; i <= 5; i++ {
		s.addRecord(model.PlayerID(i), int32(100+i))
	}

	rows, err := s.engine.Overview(s.ctx, testMapID, 99, model.OptEvent{})
	s.Require().NoError(err)
	s.Len(rows, 5)
}

func TestCompetRank(t *testing.T) {
	for _, tc := range []struct {
		name  string
		times []int32
		want  []int
	}{
		{"empty", nil, []int{}},
		{"distinct", []int32{10, 20, 30}, []int{1, 2, 3}},
		{"leading tie", []int32{10, 10, 30}, []int{1, 1, 3}},
		{"middle tie", []int32{10, 20, 20, 30}, []int{1, 2, 2, 4}},
		{"all tied", []int32{10, 10, 10}, []int{1, 1, 1}},
		{"double tie", []int32{5, 5, 7, 7, 9}, []int{1, 1, 3, 3, 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := CompetRank(tc.times, func(t int32) int32 { return t })
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}
