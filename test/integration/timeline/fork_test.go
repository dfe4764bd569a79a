// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package timeline_test

import (
	"crypto/sha256"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/timeline/internal/continuation"
	"github.com/holomush/timeline/internal/domain"
	"github.com/holomush/timeline/internal/generator"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/simerr"
)

func fileDigest() [32]byte {
	data, err := os.ReadFile(env.path)
	Expect(err).NotTo(HaveOccurred())
	return sha256.Sum256(data)
}

var _ = Describe("Replay", func() {
	It("records a header that matches the run", func() {
		h := env.file.Header
		Expect(h.FormatVersion).To(Equal(replay.FormatVersion))
		Expect(h.RootSeed).To(Equal(rootSeed))
		Expect(h.FrameCount).To(Equal(uint64(recordedFrames + 1)))
		Expect(h.EventCount).To(Equal(len(env.file.Events)))
		Expect(h.Origin).To(BeNil())
	})

	It("reconstructs every frame exactly as it was played", func() {
		for frame := uint64(0); frame <= recordedFrames; frame++ {
			s, err := env.rebuild.ReconstructAt(env.ctx, env.file, frame)
			Expect(err).NotTo(HaveOccurred(), "frame %d", frame)
			Expect(encode(s)).To(MatchJSON(env.live[frame]), "frame %d", frame)
		}
	})

	It("rejects frames past the end", func() {
		_, err := env.rebuild.ReconstructAt(env.ctx, env.file, recordedFrames+1)
		Expect(simerr.HasCode(err, simerr.CodeFrameOutOfRange)).To(BeTrue())
	})
})

var _ = Describe("Continuation", func() {
	var (
		before [32]byte
		early  *continuation.Continuation
		late   *continuation.Continuation
	)

	BeforeEach(func() {
		before = fileDigest()
		var err error
		early, err = env.controller.ContinueFromFrame(env.ctx, env.file, 10, 111)
		Expect(err).NotTo(HaveOccurred())
		late, err = env.controller.ContinueFromFrame(env.ctx, env.file, 50, 222)
		Expect(err).NotTo(HaveOccurred())
	})

	It("starts each fork from the recorded state at its frame", func() {
		Expect(early.Session.Frame).To(Equal(uint64(10)))
		Expect(late.Session.Frame).To(Equal(uint64(50)))
		Expect(early.Session.RootSeed).To(Equal(int64(111)))
		Expect(late.Session.RootSeed).To(Equal(int64(222)))

		e := early.Session.Clone()
		e.RootSeed = rootSeed
		Expect(encode(e)).To(MatchJSON(env.live[10]))
	})

	It("records each fork's origin", func() {
		Expect(early.Origin).To(Equal(record.Origin{ParentReplayID: env.file.Header.ReplayID, ForkFrame: 10}))
		Expect(late.Origin).To(Equal(record.Origin{ParentReplayID: env.file.Header.ReplayID, ForkFrame: 50}))
		Expect(early.Recorder.ID()).NotTo(Equal(late.Recorder.ID()))
	})

	It("keeps forks isolated from each other and from the file", func() {
		earlyEngine := domain.FromContinuation(early, generator.NewDeterministic(), domain.WithCodec(env.codec))
		lateEngine := domain.FromContinuation(late, generator.NewDeterministic(), domain.WithCodec(env.codec))
		lateBefore := encode(late.Session)

		Expect(earlyEngine.Run(env.ctx, 20)).To(Succeed())
		Expect(earlyEngine.Frame()).To(Equal(uint64(30)))
		Expect(encode(late.Session)).To(MatchJSON(lateBefore))

		Expect(lateEngine.Run(env.ctx, 5)).To(Succeed())
		Expect(lateEngine.Frame()).To(Equal(uint64(55)))

		Expect(fileDigest()).To(Equal(before))
		again, err := env.rebuild.ReconstructAt(env.ctx, env.file, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(encode(again)).To(MatchJSON(env.live[10]))
	})

	It("diverges from the parent after a reseed", func() {
		engine := domain.FromContinuation(early, generator.NewDeterministic(), domain.WithCodec(env.codec))
		Expect(engine.Run(env.ctx, 20)).To(Succeed())
		Expect(encode(engine.Session())).NotTo(MatchJSON(env.live[30]))
	})

	It("saves a fork that can itself be forked", func() {
		engine := domain.FromContinuation(late, generator.NewDeterministic(), domain.WithCodec(env.codec))
		Expect(engine.Run(env.ctx, 8)).To(Succeed())

		path := filepath.Join(env.dir, "late"+replay.Extension)
		h, err := replay.Save(env.ctx, path, engine.Recorder())
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Origin).NotTo(BeNil())
		Expect(h.Origin.ForkFrame).To(Equal(uint64(50)))

		child, err := replay.Load(env.ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(child.Header.FrameCount).To(Equal(uint64(59)))

		_, err = env.rebuild.ReconstructAt(env.ctx, child, 49)
		Expect(simerr.HasCode(err, simerr.CodeNoCheckpointBeforeFrame)).To(BeTrue())

		grandchild, err := env.controller.ContinueFromFrame(env.ctx, child, 55, 333)
		Expect(err).NotTo(HaveOccurred())
		Expect(grandchild.Origin.ParentReplayID).To(Equal(child.Header.ReplayID))
		Expect(encode(grandchild.Session)).NotTo(BeEmpty())
	})
})

var _ = Describe("PlayThenContinue", func() {
	It("plays each frame in order and forks where playback stops", func() {
		var played []uint64
		fork, err := env.controller.PlayThenContinue(env.ctx, env.file, 10, func(f continuation.Frame) error {
			played = append(played, f.Number)
			Expect(encode(withSeed(f))).To(MatchJSON(env.live[f.Number]))
			return nil
		}, 444)
		Expect(err).NotTo(HaveOccurred())

		want := make([]uint64, 11)
		for i := range want {
			want[i] = uint64(i)
		}
		Expect(played).To(Equal(want))
		Expect(fork.Session.Frame).To(Equal(uint64(10)))
		Expect(fork.Origin.ForkFrame).To(Equal(uint64(10)))
	})
})
