// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package timeline_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/timeline/internal/continuation"
	"github.com/holomush/timeline/internal/domain"
	"github.com/holomush/timeline/internal/generator"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/session"
)

// withSeed returns the played-back state as the recording saw it.
func withSeed(f continuation.Frame) *session.Session {
	s := f.State.Clone()
	s.RootSeed = rootSeed
	return s
}

var _ = Describe("Determinism", func() {
	It("replays the recorded timeline from the recorded generator calls", func() {
		engine := domain.NewEngine(session.New(rootSeed), record.New(),
			generator.NewPlayback(env.file.GeneratorCalls), domain.WithCodec(env.codec))
		Expect(engine.Bootstrap(env.ctx, domain.DefaultSetup)).To(Succeed())
		Expect(engine.Run(env.ctx, recordedFrames)).To(Succeed())

		got := engine.Recorder().Events()
		Expect(got).To(HaveLen(len(env.file.Events)))
		for i, want := range env.file.Events {
			Expect(got[i].Frame).To(Equal(want.Frame))
			Expect(got[i].Kind).To(Equal(want.Kind))
			Expect(got[i].ActorID).To(Equal(want.ActorID))
			Expect(string(got[i].Payload)).To(MatchJSON(string(want.Payload)))
		}
		Expect(encode(engine.Session())).To(MatchJSON(env.live[recordedFrames]))
	})
})
