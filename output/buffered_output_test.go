package output

import (
	"testing"
	"time"

	"github.com/ab180/mandelmr/renderpb"
	. "github.com/smartystreets/goconvey/convey"
)

const bufSize = 10

func TestNewBufferedOutput(t *testing.T) {
	Convey("Given NewBufferedOutput", t, func() {
		Convey("When calling it with zero buffer size", func() {
			Convey("It should panic", func() {
				So(func() { NewBufferedOutput(nil, 0) }, ShouldPanic)
			})
		})
	})
}

func TestBufferedOutput_Write(t *testing.T) {
	Convey("Calling Write to BufferedOutput", t, func() {
		m := &outputMock{}
		o := NewBufferedOutput(m, bufSize)

		Convey("When writing items shorter than the buffer size to the buffer", func() {
			it := pixels(bufSize / 2)
			err := o.Write(it...)
			So(err, ShouldBeNil)

			Convey("It should not write to the original output", func() {
				So(m.Pixels, ShouldBeEmpty)
			})

			Convey("When calling flush", func() {
				err := o.Flush()
				So(err, ShouldBeNil)

				Convey("It should write to the original output", func() {
					So(m.Pixels, ShouldResemble, it)
				})
			})
		})

		Convey("When writing items larger than the buffer size to the buffer", func() {
			err := o.Write(pixels(bufSize * 5)...)
			So(err, ShouldBeNil)

			Convey("It should flush multiple times", func() {
				So(m.Calls.Write, ShouldEqual, 5)
			})
		})

		Convey("When writing items wrapped to the buffer size", func() {
			var it []renderpb.PixelResult

			So(o.Write(pixels(bufSize/2)...), ShouldBeNil)
			it = append(it, pixels(bufSize/2)...)

			So(o.Write(pixels(bufSize)...), ShouldBeNil)
			it = append(it, pixels(bufSize)...)

			Convey("It should flush before the wrap point", func() {
				So(m.Calls.Write, ShouldEqual, 1)
				So(m.Pixels, ShouldResemble, it[:bufSize])
			})

			Convey("When calling close", func() {
				So(o.Close(), ShouldBeNil)

				Convey("It should write rest of the items and close the output", func() {
					So(m.Calls.Write, ShouldEqual, 2)
					So(m.Pixels, ShouldResemble, it)
					So(m.Calls.Close, ShouldEqual, 1)
				})
			})
		})
	})
}

func TestBufferedOutput_Flush(t *testing.T) {
	Convey("Calling Flush to BufferedOutput", t, func() {
		m := &outputMock{}
		o := NewBufferedOutput(m, bufSize)

		Convey("When there are items", func() {
			it := pixels(bufSize / 2)
			So(o.Write(it...), ShouldBeNil)

			Convey("It should write them to the original output", func() {
				So(o.Flush(), ShouldBeNil)
				So(m.Pixels, ShouldResemble, it)
			})
		})

		Convey("After flushed all items", func() {
			So(o.Write(pixels(bufSize/2)...), ShouldBeNil)
			So(o.Flush(), ShouldBeNil)
			So(m.Pixels, ShouldHaveLength, bufSize/2)

			Convey("It should not write anything with no error", func() {
				So(o.Flush(), ShouldBeNil)
				So(m.Pixels, ShouldHaveLength, bufSize/2)
				So(m.Calls.Write, ShouldEqual, 1)
			})
		})
	})
}

func TestBufferedOutput_MaxDelay(t *testing.T) {
	Convey("Given a BufferedOutput with a max delay", t, func() {
		m := &outputMock{}
		now := time.Unix(0, 0)
		o := NewBufferedOutput(m, bufSize, WithMaxDelay(time.Second))
		o.now = func() time.Time { return now }

		So(o.Write(pixels(2)...), ShouldBeNil)

		Convey("A partial batch should be kept within the delay", func() {
			now = now.Add(500 * time.Millisecond)
			So(o.Write(pixels(2)...), ShouldBeNil)
			So(m.Calls.Write, ShouldEqual, 0)
		})

		Convey("A partial batch should be written once the delay has passed", func() {
			now = now.Add(time.Second)
			So(o.Write(pixels(1)...), ShouldBeNil)
			So(m.Calls.Write, ShouldEqual, 1)
			So(m.Pixels, ShouldHaveLength, 3)

			Convey("The delay should restart on the next batch", func() {
				now = now.Add(500 * time.Millisecond)
				So(o.Write(pixels(1)...), ShouldBeNil)
				So(m.Calls.Write, ShouldEqual, 1)
			})
		})
	})
}

func TestStreamOutput(t *testing.T) {
	Convey("Given a StreamOutput behind a BufferedOutput", t, func() {
		s := &senderMock{}
		o := NewBufferedOutput(NewStreamOutput(s, 3), 4)

		So(o.Write(pixels(10)...), ShouldBeNil)
		So(o.Close(), ShouldBeNil)

		Convey("It should send sealed batches in sequence", func() {
			So(s.Batches, ShouldHaveLength, 3)
			for i, b := range s.Batches {
				So(b.Seq, ShouldEqual, i)
				So(b.WorkerID, ShouldEqual, 3)
				So(b.Verify(), ShouldBeTrue)
			}
			So(s.Batches[2].Pixels, ShouldResemble, pixels(10)[8:])
		})
	})
}

func pixels(length int) (pp []renderpb.PixelResult) {
	for i := 0; i < length; i++ {
		pp = append(pp, renderpb.PixelResult{X: i, Y: 0, Count: i % 7})
	}
	return
}

type outputMock struct {
	Pixels []renderpb.PixelResult
	Calls  struct {
		Write int
		Close int
	}
}

func (o *outputMock) Write(pixels []renderpb.PixelResult) error {
	o.Pixels = append(o.Pixels, pixels...)
	o.Calls.Write++
	return nil
}

func (o *outputMock) Close() error {
	o.Calls.Close++
	return nil
}

type senderMock struct {
	Batches []*renderpb.PixelBatch
}

// Send copies the batch since the pixels are reused by the buffer.
func (s *senderMock) Send(b *renderpb.PixelBatch) error {
	copied := *b
	copied.Pixels = append([]renderpb.PixelResult(nil), b.Pixels...)
	s.Batches = append(s.Batches, &copied)
	return nil
}
