package storage

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEEPROM(t *testing.T) {
	Convey("Given an eeprom store on a fresh file", t, func() {
		path := filepath.Join(t.TempDir(), "eeprom.bin")
		e, err := OpenEEPROM(path, EEPROMSize)
		So(err, ShouldBeNil)
		defer e.Close()

		Convey("Then fresh space reads as erased (0xff)", func() {
			b, err := e.Read(0, 4)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, []byte{0xff, 0xff, 0xff, 0xff})
		})

		Convey("Then reads outside the reserved size fail", func() {
			_, err := e.Read(EEPROMSize-1, 2)
			So(err, ShouldEqual, ErrOutOfRange)
		})

		Convey("When writing a byte", func() {
			So(e.Write(10, 0xab), ShouldBeNil)

			Convey("Then it reads back", func() {
				b, err := e.Read(10, 1)
				So(err, ShouldBeNil)
				So(b[0], ShouldEqual, 0xab)
			})

			Convey("Then rewriting the same value consumes no erase cycle", func() {
				writes := e.ByteWrites
				So(e.Write(10, 0xab), ShouldBeNil)
				So(e.ByteWrites, ShouldEqual, writes)
			})

			Convey("Then the content survives a close and reopen", func() {
				So(e.Close(), ShouldBeNil)

				e2, err := OpenEEPROM(path, EEPROMSize)
				So(err, ShouldBeNil)
				defer e2.Close()

				b, err := e2.Read(10, 1)
				So(err, ShouldBeNil)
				So(b[0], ShouldEqual, 0xab)
			})
		})
	})
}

func TestRetainedRegisters(t *testing.T) {
	Convey("Given a retained register file", t, func() {
		path := filepath.Join(t.TempDir(), "retained.bin")
		r, err := OpenRetainedRegisters(path)
		So(err, ShouldBeNil)
		defer r.Close()

		Convey("Then a fresh file reads all slots as zero", func() {
			v, err := r.Get(SlotDataValid)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})

		Convey("Then slots outside the register window fail", func() {
			_, err := r.Get(RetainedRegisterCount)
			So(err, ShouldEqual, ErrOutOfRange)
			So(r.Set(-1, 0), ShouldEqual, ErrOutOfRange)
		})

		Convey("When setting slots", func() {
			So(r.Set(SlotDataValid, DataValidMarker), ShouldBeNil)
			So(r.Set(SlotFCntUp, 1234), ShouldBeNil)

			Convey("Then they read back", func() {
				v, err := r.Get(SlotFCntUp)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 1234)
			})

			Convey("Then the values survive a close and reopen (deep sleep)", func() {
				So(r.Close(), ShouldBeNil)

				r2, err := OpenRetainedRegisters(path)
				So(err, ShouldBeNil)
				defer r2.Close()

				v, err := r2.Get(SlotDataValid)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, DataValidMarker)
			})
		})
	})
}
