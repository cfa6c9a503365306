package rtc

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFileClock(t *testing.T) {
	Convey("Given a wall-clock on a fresh state file", t, func() {
		path := filepath.Join(t.TempDir(), "rtc.bin")
		c, err := OpenFileClock(path)
		So(err, ShouldBeNil)

		Convey("Then a never-set clock starts at the epoch", func() {
			tm, err := c.Read()
			So(err, ShouldBeNil)
			So(tm.Year, ShouldEqual, 2023)
			So(tm.Month, ShouldEqual, 1)
			So(tm.Day, ShouldEqual, 1)
		})

		Convey("When the clock is set", func() {
			So(c.Write(Time{Day: 22, Month: 4, Year: 2023, Hour: 10, Minute: 30, Second: 0}), ShouldBeNil)

			Convey("Then reads return the set time", func() {
				tm, err := c.Read()
				So(err, ShouldBeNil)
				So(tm.Day, ShouldEqual, 22)
				So(tm.Month, ShouldEqual, 4)
				So(tm.Year, ShouldEqual, 2023)
				So(tm.Hour, ShouldEqual, 10)
			})

			Convey("Then the set time survives a reopen (sleep cycle)", func() {
				c2, err := OpenFileClock(path)
				So(err, ShouldBeNil)

				tm, err := c2.Read()
				So(err, ShouldBeNil)
				So(tm.Day, ShouldEqual, 22)
				So(tm.Month, ShouldEqual, 4)
			})
		})
	})
}

func TestTimeString(t *testing.T) {
	Convey("Given a wall-clock timestamp", t, func() {
		tm := Time{Day: 4, Month: 4, Year: 2023, Hour: 9, Minute: 5, Second: 7}

		Convey("Then it formats as dd-mm-yy hh:mm:ss", func() {
			So(tm.String(), ShouldEqual, "04-04-23 09:05:07")
		})
	})
}
