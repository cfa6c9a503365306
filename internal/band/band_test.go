package band

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/brocaar/chirpstack-sleepy-node/internal/test"
	loraband "github.com/brocaar/lorawan/band"
)

func TestSetup(t *testing.T) {
	Convey("Given an EU868 configuration", t, func() {
		conf := test.GetConfig()
		conf.Band.Name = loraband.EU868

		Convey("Then the band is configured with all default channels", func() {
			So(Setup(conf), ShouldBeNil)
			So(Band().GetEnabledUplinkChannelIndices(), ShouldHaveLength, 3)
		})
	})

	Convey("Given an AU915 configuration", t, func() {
		conf := test.GetConfig()
		conf.Band.Name = loraband.AU915

		Convey("Then only sub-band 2 (channels 8..15) remains enabled", func() {
			So(Setup(conf), ShouldBeNil)
			So(Band().GetEnabledUplinkChannelIndices(), ShouldResemble, []int{8, 9, 10, 11, 12, 13, 14, 15})
		})
	})

	Convey("Given an unknown band name", t, func() {
		conf := test.GetConfig()
		conf.Band.Name = "XX999"

		Convey("Then setup fails", func() {
			So(Setup(conf), ShouldNotBeNil)
		})
	})
}
