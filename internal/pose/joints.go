package pose

// JointDefinition describes one joint angle: the angle at Vertex between the
// segments towards EndpointA and EndpointB.
type JointDefinition struct {
	Name      string
	Vertex    int
	EndpointA int
	EndpointB int
}

// Joint names used by DefaultJoints.
const (
	JointLeftShoulder  = "left_shoulder"
	JointRightShoulder = "right_shoulder"
	JointLeftElbow     = "left_elbow"
	JointRightElbow    = "right_elbow"
	JointLeftHip       = "left_hip"
	JointRightHip      = "right_hip"
	JointLeftKnee      = "left_knee"
	JointRightKnee     = "right_knee"
)

// DefaultJoints is the table of joint angles compared between poses.
// Shoulder and hip angles measure the limb against the torso.
var DefaultJoints = []JointDefinition{
	{Name: JointLeftShoulder, Vertex: LeftShoulder, EndpointA: LeftElbow, EndpointB: LeftHip},
	{Name: JointRightShoulder, Vertex: RightShoulder, EndpointA: RightElbow, EndpointB: RightHip},
	{Name: JointLeftElbow, Vertex: LeftElbow, EndpointA: LeftShoulder, EndpointB: LeftWrist},
	{Name: JointRightElbow, Vertex: RightElbow, EndpointA: RightShoulder, EndpointB: RightWrist},
	{Name: JointLeftHip, Vertex: LeftHip, EndpointA: LeftKnee, EndpointB: LeftShoulder},
	{Name: JointRightHip, Vertex: RightHip, EndpointA: RightKnee, EndpointB: RightShoulder},
	{Name: JointLeftKnee, Vertex: LeftKnee, EndpointA: LeftHip, EndpointB: LeftAnkle},
	{Name: JointRightKnee, Vertex: RightKnee, EndpointA: RightHip, EndpointB: RightAnkle},
}

// Limb is a drawable skeleton segment together with the joint angles that
// determine whether it is positioned correctly.
type Limb struct {
	Name   string
	From   int
	To     int
	Angles []string
}

// DefaultLimbs lists the skeleton segments drawn for overlays. Torso
// cross-bars carry no angles and are never judged.
var DefaultLimbs = []Limb{
	{Name: "upper_torso", From: LeftShoulder, To: RightShoulder},
	{Name: "lower_torso", From: LeftHip, To: RightHip},
	{Name: "left_torso", From: LeftShoulder, To: LeftHip, Angles: []string{JointLeftShoulder, JointLeftHip}},
	{Name: "right_torso", From: RightShoulder, To: RightHip, Angles: []string{JointRightShoulder, JointRightHip}},
	{Name: "left_upper_arm", From: LeftShoulder, To: LeftElbow, Angles: []string{JointLeftShoulder, JointLeftElbow}},
	{Name: "left_forearm", From: LeftElbow, To: LeftWrist, Angles: []string{JointLeftElbow}},
	{Name: "right_upper_arm", From: RightShoulder, To: RightElbow, Angles: []string{JointRightShoulder, JointRightElbow}},
	{Name: "right_forearm", From: RightElbow, To: RightWrist, Angles: []string{JointRightElbow}},
	{Name: "left_thigh", From: LeftHip, To: LeftKnee, Angles: []string{JointLeftHip, JointLeftKnee}},
	{Name: "left_shin", From: LeftKnee, To: LeftAnkle, Angles: []string{JointLeftKnee}},
	{Name: "right_thigh", From: RightHip, To: RightKnee, Angles: []string{JointRightHip, JointRightKnee}},
	{Name: "right_shin", From: RightKnee, To: RightAnkle, Angles: []string{JointRightKnee}},
}
