package score_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/varrock/clogboard/internal/domain/score"
)

func TestTotal(t *testing.T) {
	Convey("Given the Total type", t, func() {
		Convey("When built from a known count", func() {
			tot := score.Known(742)

			Convey("Then it should expose the count", func() {
				v, ok := tot.Value()
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 742)
				So(tot.IsKnown(), ShouldBeTrue)
				So(tot.Raw(), ShouldEqual, 742)
				So(tot.String(), ShouldEqual, "742")
			})
		})

		Convey("When below the visibility floor", func() {
			tot := score.BelowFloor()

			Convey("Then it should encode and render as the sentinel", func() {
				_, ok := tot.Value()
				So(ok, ShouldBeFalse)
				So(tot.Raw(), ShouldEqual, -1)
				So(tot.String(), ShouldEqual, "<500")
			})
		})

		Convey("When decoded from raw values", func() {
			Convey("Then negatives mean below floor", func() {
				So(score.FromRaw(-1).IsKnown(), ShouldBeFalse)
				So(score.FromRaw(0).IsKnown(), ShouldBeTrue)
				So(score.FromRaw(499).Raw(), ShouldEqual, 499)
			})
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given the below-floor carry-forward policy", t, func() {
		Convey("When the fetched total is known", func() {
			got := score.Resolve(score.Known(600), score.Known(120), true)

			Convey("Then the fetched total always wins", func() {
				So(got.Raw(), ShouldEqual, 600)
			})
		})

		Convey("When the fetched total is below floor", func() {
			fetched := score.BelowFloor()

			Convey("And there is no previous value", func() {
				got := score.Resolve(fetched, score.Total{}, false)

				Convey("Then the sentinel is kept", func() {
					So(got.IsKnown(), ShouldBeFalse)
				})
			})

			Convey("And the previous value is a plausible below-floor count", func() {
				got := score.Resolve(fetched, score.Known(321), true)

				Convey("Then the previous value is carried forward", func() {
					So(got.Raw(), ShouldEqual, 321)
				})
			})

			Convey("And the previous value is zero", func() {
				got := score.Resolve(fetched, score.Known(0), true)

				Convey("Then zero is still trusted", func() {
					So(got.Raw(), ShouldEqual, 0)
				})
			})

			Convey("And the previous value is at or above the floor", func() {
				got := score.Resolve(fetched, score.Known(500), true)

				Convey("Then the sentinel is kept", func() {
					So(got.IsKnown(), ShouldBeFalse)
				})
			})

			Convey("And the previous value is itself below floor", func() {
				got := score.Resolve(fetched, score.BelowFloor(), true)

				Convey("Then the sentinel is kept", func() {
					So(got.IsKnown(), ShouldBeFalse)
				})
			})
		})
	})
}
