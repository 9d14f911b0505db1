package pricing

// awsRegionInfo maps AWS regions to their list prices. Lambda and EKS prices
// are shared by most regions; Fargate prices vary per region.
var awsRegionInfo = map[Region]RegionInfo{
	// North America
	USEast1: {
		DisplayName: "us-east-1 (N. Virginia)",
		Pricing: Pricing{
			LambdaGBSecond:           0.0000166667,
			LambdaPerMillionRequests: 0.20,
			FargateVCPUHour:          0.04048,
			FargateGBHour:            0.004445,
			EKSClusterHour:           0.10,
		},
	},
	USWest2: {
		DisplayName: "us-west-2 (Oregon)",
		Pricing: Pricing{
			LambdaGBSecond:           0.0000166667,
			LambdaPerMillionRequests: 0.20,
			FargateVCPUHour:          0.04048,
			FargateGBHour:            0.004445,
			EKSClusterHour:           0.10,
		},
	},

	// Europe
	EUWest1: {
		DisplayName: "eu-west-1 (Ireland)",
		Pricing: Pricing{
			LambdaGBSecond:           0.0000166667,
			LambdaPerMillionRequests: 0.20,
			FargateVCPUHour:          0.04456,
			FargateGBHour:            0.004890,
			EKSClusterHour:           0.10,
		},
	},

	// Asia Pacific
	APSoutheast1: {
		DisplayName: "ap-southeast-1 (Singapore)",
		Pricing: Pricing{
			LambdaGBSecond:           0.0000166667,
			LambdaPerMillionRequests: 0.20,
			FargateVCPUHour:          0.04656,
			FargateGBHour:            0.005107,
			EKSClusterHour:           0.10,
		},
	},

	// South America
	SAEast1: {
		DisplayName: "sa-east-1 (São Paulo)",
		Pricing: Pricing{
			LambdaGBSecond:           0.0000208334,
			LambdaPerMillionRequests: 0.30,
			FargateVCPUHour:          0.05664,
			FargateGBHour:            0.006218,
			EKSClusterHour:           0.10,
		},
	},
}
