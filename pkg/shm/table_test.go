package shm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type TableTestSuite struct {
	suite.Suite
	ctx   context.Context
	sink  *MemorySink
	table *Table
}

func (s *TableTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.sink = NewMemorySink(16)
	s.table = NewTable(Config{ReservedSize: 1024, Sink: s.sink})
}

func (s *TableTestSuite) TearDownTest() {
	s.table.CloseAll()
}

func (s *TableTestSuite) pair() (int, int) {
	return testPair(s.T())
}

func (s *TableTestSuite) TestCreateIsIdempotent() {
	pid, id := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 1))
	size := s.table.TotalSize(1)
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 1))

	s.True(s.table.IsOpen(1))
	s.Equal(size, s.table.TotalSize(1))
	s.Equal(1, s.table.Len())
	s.Equal(1, holders.count(RegionName(pid, id)))
}

func (s *TableTestSuite) TestOpenThenClose() {
	pid, id := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 7))
	s.True(s.table.IsOpen(7))
	s.NotNil(s.table.Get(7))

	s.table.Close(7)
	s.False(s.table.IsOpen(7))
	s.Nil(s.table.Get(7))
	s.Zero(s.table.TotalSize(7))
	s.Zero(s.table.ReservedSize(7))
}

func (s *TableTestSuite) TestReservedSize() {
	pid, id := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 2))
	s.Equal(1024, s.table.ReservedSize(2))
	s.Equal(s.table.TotalSize(2)-136, s.table.ReservedSize(2))
}

func (s *TableTestSuite) TestSentinelsForUnknownHandle() {
	const never Handle = 99
	s.Nil(s.table.Get(never))
	s.False(s.table.IsOpen(never))
	s.Zero(s.table.TotalSize(never))
	s.Zero(s.table.ReservedSize(never))
	s.NotPanics(func() { s.table.Close(never) })
	s.NotPanics(func() { s.table.Log(never, "test") })
	s.Zero(s.sink.Len())
}

func (s *TableTestSuite) TestCloseTwice() {
	pid, id := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 3))
	s.NotPanics(func() {
		s.table.Close(3)
		s.table.Close(3)
	})
	s.False(s.table.IsOpen(3))
}

func (s *TableTestSuite) TestHandleInUse() {
	pid, id := s.pair()
	_, other := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 4))
	s.ErrorIs(s.table.Create(s.ctx, pid, other, 4), ErrHandleInUse)
	s.Equal(RegionName(pid, id), s.table.Region(4).Name())
}

func (s *TableTestSuite) TestSharedBetweenTables() {
	// Two tables stand in for two processes mapping the same object.
	pid, id := s.pair()
	peer := NewTable(Config{ReservedSize: 1024, Sink: Discard})
	defer peer.CloseAll()

	s.Require().NoError(s.table.Create(s.ctx, pid, id, 1))
	s.Require().NoError(peer.Create(s.ctx, pid, id, 1))

	s.Require().NoError(s.table.Get(1).SetPID(31, 4321))
	got, err := peer.Get(1).PID(31)
	s.Require().NoError(err)
	s.Equal(int32(4321), got)

	peer.Get(1).SetClearCount(5)
	s.Equal(int32(5), s.table.Get(1).ClearCount())
}

func (s *TableTestSuite) TestLog() {
	pid, id := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 5))
	s.table.Log(5, "test")
	s.table.Close(5)
	s.table.Log(5, "test")

	msgs := s.sink.Drain()
	s.Require().Len(msgs, 1)
	s.Equal("test", msgs[0].Text)
}

func (s *TableTestSuite) TestStats() {
	pid, id := s.pair()
	_, id2 := s.pair()
	s.Require().NoError(s.table.Create(s.ctx, pid, id2, 9))
	s.Require().NoError(s.table.Create(s.ctx, pid, id, 8))
	s.table.Get(8).SetCurrentPointer(100)

	stats := s.table.Stats()
	s.Require().Len(stats, 2)
	s.Equal(Handle(8), stats[0].Handle)
	s.Equal(int32(100), stats[0].CurrentPointer)
	s.Equal(Handle(9), stats[1].Handle)
	s.Equal([]Handle{8, 9}, s.table.Handles())
}

func (s *TableTestSuite) TestConcurrentCreateClose() {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		pid, id := s.pair()
		h := Handle(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.NoError(s.table.Create(s.ctx, pid, id, h))
				s.table.Log(h, "tick")
				_ = s.table.IsOpen(h)
				s.table.Close(h)
			}
		}()
	}
	wg.Wait()
	s.Zero(s.table.Len())
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}
