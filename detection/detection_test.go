package detection

import (
	"math"
	"testing"

	"go.viam.com/test"
)

// aldomaRows are the detections of the Aldoma sample scene: 8 frames, 6 objects, where only
// objects 0 and 3 are detected in the first frame.
var aldomaRows = [][]float64{
	{
		368.97869873, 241.3981781, 429.3835144, 309.05929565,
		1, 1, 1, 2,
		1, 1, 1, 2,
		394.25811768, 323.92715454, 480.84927368, 399.02444458,
		1, 1, 1, 2,
		1, 1, 1, 2,
	},
	{
		268.71255493, 264.70092773, 338.02108765, 337.12896729,
		345.15518188, 286.14849854, 421.89260864, 356.74407959,
		210.70513916, 339.22924805, 276.33981323, 433.44143677,
		275.58880615, 357.95248413, 366.25387573, 438.51266479,
		233.23313904, 222.92678833, 268.73962402, 286.59417725,
		179.23153687, 274.41543579, 220.40000916, 343.59829712,
	},
	{
		319.09350586, 278.32012939, 395.9881897, 339.9385376,
		379.24969482, 329.80615234, 466.75039673, 386.69143677,
		217.56640625, 321.81710815, 299.9659729, 406.78347778,
		273.675354, 374.83673096, 360.96035767, 434.42593384,
		312.9446106, 216.79870605, 344.60357666, 280.54574585,
		239.91426086, 248.05413818, 275.54110718, 314.31283569,
	},
	{
		315.36114502, 316.1701355, 394.37454224, 368.28683472,
		347.30505371, 378.78378296, 440.44546509, 453.36904907,
		188.36791992, 331.16345215, 276.43658447, 404.6635437,
		214.55780029, 385.59359741, 310.82644653, 468.81610107,
		335.87738037, 238.62005615, 369.57720947, 304.73086548,
		250.55516052, 252.22273254, 286.06552124, 319.73846436,
	},
	{
		256.47576904, 320.72235107, 340.13830566, 386.76333618,
		252.72369385, 390.62054443, 347.45266724, 484.88293457,
		133.39767456, 320.96795654, 218.39674377, 377.56646729,
		132.30621338, 366.24981689, 219.84518433, 459.68603516,
		309.29263306, 250.46266174, 343.53515625, 317.23831177,
		222.79190063, 246.48374939, 258.72210693, 313.45471191,
	},
	{
		347.63970947, 286.10244751, 421.15863037, 366.22714233,
		305.4281311, 339.4513855, 369.14886475, 436.16751099,
		259.60656738, 244.6635437, 330.96289062, 305.32406616,
		241.35693359, 277.95428467, 285.89572144, 357.82327271,
		424.29995728, 245.79014587, 465.02682495, 313.96707153,
		358.36880493, 212.25823975, 391.81015015, 275.21115112,
	},
	{
		286.1980896, 289.27526855, 366.60769653, 373.68130493,
		246.02645874, 357.13134766, 322.96966553, 464.18991089,
		182.73692322, 254.81884766, 265.10748291, 316.26983643,
		165.15997314, 295.33834839, 224.18908691, 387.36245728,
		364.89892578, 236.72938538, 404.25271606, 307.05389404,
		289.40112305, 206.87263489, 324.01483154, 273.34524536,
	},
	{
		313.42510986, 289.61465454, 398.50708008, 364.82751465,
		298.51138306, 360.96524048, 390.03161621, 462.4954834,
		195.63148499, 277.24972534, 278.10684204, 329.93252563,
		189.6361084, 318.38220215, 266.52435303, 412.45333862,
		374.65100098, 225.24407959, 413.30654907, 293.85787964,
		291.13165283, 210.01704407, 325.08905029, 276.91616821,
	},
}

func TestBoundingBox(t *testing.T) {
	bb, err := NewBoundingBox([]float64{10, 20, 50, 40})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bb.Width(), test.ShouldEqual, 40)
	test.That(t, bb.Height(), test.ShouldEqual, 20)
	test.That(t, bb.Center().X, test.ShouldEqual, 30)
	test.That(t, bb.Center().Y, test.ShouldEqual, 30)
	test.That(t, bb.IsWellFormed(), test.ShouldBeTrue)
	test.That(t, bb.Corners(), test.ShouldResemble, []float64{10, 20, 50, 40})

	_, err = NewBoundingBox([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, BoundingBox{X0: 5, Y0: 5, X1: 5, Y1: 9}.IsWellFormed(), test.ShouldBeFalse)
	test.That(t, BoundingBox{X0: 5, Y0: 5, X1: 4, Y1: 9}.IsWellFormed(), test.ShouldBeFalse)
	test.That(t, BoundingBox{X0: math.NaN(), Y0: 5, X1: 6, Y1: 9}.IsWellFormed(), test.ShouldBeFalse)
	test.That(t, Sentinel.IsWellFormed(), test.ShouldBeFalse)
}

func TestSentinelIsAlwaysInvisible(t *testing.T) {
	boxes := [][]BoundingBox{
		{Sentinel, {X0: 0, Y0: 0, X1: 1, Y1: 1}, Sentinel},
		{{X0: 1, Y0: 1, X1: 2, Y1: 2}, Sentinel, Sentinel},
		{Sentinel, Sentinel, Sentinel},
	}
	vm := ResolveVisibility(boxes)
	frames, objects := vm.Dims()
	test.That(t, frames, test.ShouldEqual, 3)
	test.That(t, objects, test.ShouldEqual, 3)
	for frame, row := range boxes {
		for obj, bb := range row {
			test.That(t, vm.At(frame, obj), test.ShouldEqual, bb != Sentinel)
		}
	}
}

func TestAnyOtherBoxIsVisible(t *testing.T) {
	// Near misses of the sentinel and tiny boxes are all real detections.
	for _, bb := range []BoundingBox{
		{X0: 1, Y0: 1, X1: 2, Y1: 2},
		{X0: 1, Y0: 1, X1: 1.0000001, Y1: 2},
		{X0: 1, Y0: 1, X1: 2, Y1: 1},
		{X0: 0, Y0: 0, X1: 0, Y1: 0},
		{X0: 1, Y0: 1, X1: 1, Y1: 2.0000001},
	} {
		vm := ResolveVisibility([][]BoundingBox{{bb}})
		test.That(t, vm.At(0, 0), test.ShouldBeTrue)
	}
}

func TestFirstFrameVisibility(t *testing.T) {
	d, err := NewDetectionsFromRows(aldomaRows, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.NumFrames(), test.ShouldEqual, 8)
	test.That(t, d.NumObjects(), test.ShouldEqual, 6)

	vm := d.Visibility()
	test.That(t, vm.Row(0), test.ShouldResemble, []bool{true, false, false, true, false, false})
	for frame := 1; frame < 8; frame++ {
		test.That(t, vm.Row(frame), test.ShouldResemble, []bool{true, true, true, true, true, true})
	}
	test.That(t, vm.VisibleFrames(1), test.ShouldResemble, []int{1, 2, 3, 4, 5, 6, 7})
	test.That(t, vm.VisibleFrames(3), test.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7})
	test.That(t, d.Rows(), test.ShouldResemble, aldomaRows)
}

func TestNewDetectionsRejectsMalformed(t *testing.T) {
	_, err := NewDetectionsFromRows([][]float64{{1, 2, 3}}, nil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "multiple of 4")

	_, err = NewDetections([][]BoundingBox{
		{{X0: 5, Y0: 5, X1: 5, Y1: 9}, Sentinel},
		{Sentinel},
	}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "malformed bounding box")
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 1 has 1 boxes")

	objects, err := NewObjectIndex([]string{"mug"})
	test.That(t, err, test.ShouldBeNil)
	_, err = NewDetections([][]BoundingBox{{Sentinel, Sentinel}}, objects)
	test.That(t, err.Error(), test.ShouldContainSubstring, "1 object identifiers for 2 detection columns")

	_, err = NewDetections(nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestObjectIndex(t *testing.T) {
	objects, err := NewObjectIndex([]string{"mug", "box", "can"})
	test.That(t, err, test.ShouldBeNil)
	col, ok := objects.Column("can")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, col, test.ShouldEqual, 2)
	from, to, err := objects.FlatRange("box")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, from, test.ShouldEqual, 4)
	test.That(t, to, test.ShouldEqual, 8)
	_, _, err = objects.FlatRange("plate")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewObjectIndex([]string{"mug", "mug"})
	test.That(t, err.Error(), test.ShouldContainSubstring, "used by columns 0 and 1")
	_, err = NewObjectIndex([]string{""})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, NewNumberedObjectIndex(3).IDs(), test.ShouldResemble, []string{"0", "1", "2"})
}

func TestWithVisibility(t *testing.T) {
	d, err := NewDetectionsFromRows(aldomaRows[:2], nil)
	test.That(t, err, test.ShouldBeNil)

	hidden := d.Visibility().Rows()
	hidden[1][0] = false
	vm, err := NewVisibilityMatrix(hidden)
	test.That(t, err, test.ShouldBeNil)
	masked, err := d.WithVisibility(vm)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, masked.Visibility().At(1, 0), test.ShouldBeFalse)
	test.That(t, d.Visibility().At(1, 0), test.ShouldBeTrue)

	revealed := d.Visibility().Rows()
	revealed[0][1] = true
	vm, err = NewVisibilityMatrix(revealed)
	test.That(t, err, test.ShouldBeNil)
	_, err = d.WithVisibility(vm)
	test.That(t, err.Error(), test.ShouldContainSubstring, "has no detection")

	vm, err = NewVisibilityMatrix([][]bool{{true}})
	test.That(t, err, test.ShouldBeNil)
	_, err = d.WithVisibility(vm)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewVisibilityMatrix([][]bool{{true}, {true, false}})
	test.That(t, err, test.ShouldNotBeNil)
}
